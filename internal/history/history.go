/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history persists one record per full-song playback run, giving
// operators an auditable log of what actually went out during a show.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/showctl/cueplay/internal/playlist"
)

// Outcome classifies how a playback run ended.
type Outcome string

const (
	// OutcomeFinished means the song played through to its end time.
	OutcomeFinished Outcome = "finished"
	// OutcomeHalted means an operator halted it mid-song.
	OutcomeHalted Outcome = "halted"
	// OutcomeStopped means playback was cut without a fade.
	OutcomeStopped Outcome = "stopped"
	// OutcomeFailed means the device refused to start the song.
	OutcomeFailed Outcome = "failed"
)

// PlayRecord is one full-song playback run.
type PlayRecord struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	FilePath      string  `gorm:"type:varchar(1024);not null"`
	Page          int     `gorm:"type:int"`
	Comment       string  `gorm:"type:varchar(1024)"`
	PlaylistIndex int     `gorm:"type:int"`
	StartSeconds  float64 `gorm:"type:real"`
	EndSeconds    float64 `gorm:"type:real"`
	Volume        float64 `gorm:"type:real"`

	StartedAt time.Time  `gorm:"index:idx_play_started;not null"`
	EndedAt   *time.Time // NULL while the song is still playing
	Outcome   Outcome    `gorm:"type:varchar(16);index:idx_play_outcome"`

	CreatedAt time.Time
}

// TableName returns the table name for GORM.
func (PlayRecord) TableName() string {
	return "play_records"
}

// Service records playback runs. A nil *Service is a valid "history
// disabled" handle as far as callers are concerned; they guard before use.
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewService migrates the play history schema and returns the service.
func NewService(db *gorm.DB, logger zerolog.Logger) (*Service, error) {
	if err := db.AutoMigrate(&PlayRecord{}); err != nil {
		return nil, fmt.Errorf("migrate play history: %w", err)
	}
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}, nil
}

// Begin opens a record for a song that just started playing.
func (s *Service) Begin(ctx context.Context, song playlist.Song, index int) (*PlayRecord, error) {
	rec := &PlayRecord{
		ID:            uuid.NewString(),
		FilePath:      song.FilePath,
		Page:          song.Page,
		Comment:       song.Comment,
		PlaylistIndex: index,
		StartSeconds:  song.StartTime,
		EndSeconds:    song.EndTime,
		Volume:        song.Volume,
		StartedAt:     time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	s.logger.Debug().Str("id", rec.ID).Str("file", rec.FilePath).Msg("play record opened")
	return rec, nil
}

// Finish stamps the record with its end time and outcome. A nil record is
// ignored so callers can pass through a failed Begin.
func (s *Service) Finish(ctx context.Context, rec *PlayRecord, outcome Outcome) error {
	if rec == nil {
		return nil
	}
	now := time.Now()
	rec.EndedAt = &now
	rec.Outcome = outcome

	err := s.db.WithContext(ctx).Model(rec).Updates(map[string]any{
		"ended_at": rec.EndedAt,
		"outcome":  rec.Outcome,
	}).Error
	if err != nil {
		return err
	}
	s.logger.Debug().Str("id", rec.ID).Str("outcome", string(outcome)).Msg("play record closed")
	return nil
}

// RecordFailure logs a song the device refused to start. The record is
// opened and closed in one write.
func (s *Service) RecordFailure(ctx context.Context, song playlist.Song, index int) error {
	now := time.Now()
	rec := &PlayRecord{
		ID:            uuid.NewString(),
		FilePath:      song.FilePath,
		Page:          song.Page,
		Comment:       song.Comment,
		PlaylistIndex: index,
		StartSeconds:  song.StartTime,
		EndSeconds:    song.EndTime,
		Volume:        song.Volume,
		StartedAt:     now,
		EndedAt:       &now,
		Outcome:       OutcomeFailed,
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// Recent returns the most recently started runs, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]PlayRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []PlayRecord
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
