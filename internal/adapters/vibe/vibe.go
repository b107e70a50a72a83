// Package vibe supplies the free-text similarity term of pair scores.
//
// Providers return a value on the 0–20 vibe scale. The scorer treats a
// provider error as a zero vibe, so providers report failures rather than
// guessing.
package vibe

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/survey"
)

// MaxScore is the top of the vibe scale.
const MaxScore = model.MaxVibe

// ErrUnavailable is returned when the similarity service cannot answer.
var ErrUnavailable = errors.New("vibe provider unavailable")

// Profile joins a participant's free-text answers.
func Profile(p model.Participant) string {
	var parts []string
	for _, q := range []string{survey.QIdealEvening, survey.QDescribe, survey.QTopics} {
		if t, ok := p.Answers.Text(q); ok && t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Clamp bounds v to the vibe scale; NaN becomes zero.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(MaxScore, v))
}

// Static serves fixed vibe scores, keyed by ordered pair of participant numbers.
type Static struct {
	Scores  map[[2]int]float64
	Default float64
}

// Vibe implements scoring.VibeProvider.
func (s Static) Vibe(_ context.Context, a, b model.Participant) (float64, error) {
	if v, ok := s.Scores[model.PairKey(a.Number, b.Number)]; ok {
		return Clamp(v), nil
	}
	return Clamp(s.Default), nil
}
