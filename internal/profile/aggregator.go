package profile

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Source row limits. Newest rows first in every source.
const (
	reflectionLimit = 50
	intakeLimit     = 20
	wimtsLimit      = 30
	selectionLimit  = 50
)

// RecordSource provides keyed, bounded reads over behavioral records.
type RecordSource interface {
	RecentReflections(ctx context.Context, userID string, limit int) ([]Reflection, error)
	RecentIntakeSessions(ctx context.Context, userID string, limit int) ([]IntakeSession, error)
	RecentWimtsSessions(ctx context.Context, userID string, limit int) ([]WimtsSession, error)
	RecentWimtsSelections(ctx context.Context, userID string, limit int) ([]WimtsSelection, error)
}

// Aggregate is the joined, windowed input for one synthesis request.
type Aggregate struct {
	Reflections    []Reflection
	IntakeSessions []IntakeSession
	WimtsSessions  []WimtsSession
	Selections     []WimtsSelection
}

// Aggregator fans out to the record source and joins the results.
type Aggregator struct {
	src    RecordSource
	logger *zap.Logger
}

// NewAggregator creates an Aggregator over the given source.
func NewAggregator(src RecordSource, logger *zap.Logger) *Aggregator {
	return &Aggregator{src: src, logger: logger}
}

// Collect issues the four source reads concurrently and waits for all of
// them. A failed read degrades that source to empty rather than aborting;
// downstream tasks treat empty input as "insufficient data".
func (a *Aggregator) Collect(ctx context.Context, userID string) *Aggregate {
	agg := &Aggregate{}
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		rows, err := a.src.RecentReflections(ctx, userID, reflectionLimit)
		if err != nil {
			a.logger.Warn("reflections read failed, degrading to empty",
				zap.String("user", userID), zap.Error(err))
			return
		}
		agg.Reflections = rows
	}()

	go func() {
		defer wg.Done()
		rows, err := a.src.RecentIntakeSessions(ctx, userID, intakeLimit)
		if err != nil {
			a.logger.Warn("intake sessions read failed, degrading to empty",
				zap.String("user", userID), zap.Error(err))
			return
		}
		agg.IntakeSessions = rows
	}()

	go func() {
		defer wg.Done()
		rows, err := a.src.RecentWimtsSessions(ctx, userID, wimtsLimit)
		if err != nil {
			a.logger.Warn("wimts sessions read failed, degrading to empty",
				zap.String("user", userID), zap.Error(err))
			return
		}
		agg.WimtsSessions = rows
	}()

	go func() {
		defer wg.Done()
		rows, err := a.src.RecentWimtsSelections(ctx, userID, selectionLimit)
		if err != nil {
			a.logger.Warn("wimts selections read failed, degrading to empty",
				zap.String("user", userID), zap.Error(err))
			return
		}
		agg.Selections = rows
	}()

	wg.Wait()
	return agg
}
