package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardiokinetic/internal/analysis"
	"cardiokinetic/internal/plan"
	"cardiokinetic/internal/store"
	"cardiokinetic/internal/strava"
)

// streamBatchSize caps trace fetches per sync to stay inside Strava's
// 15-minute request window.
const streamBatchSize = 50

// SyncService imports rides from Strava into the session history.
type SyncService struct {
	client *strava.Client
	store  *store.Store
}

func NewSyncService(client *strava.Client, st *store.Store) *SyncService {
	return &SyncService{client: client, store: st}
}

// SyncProgress reports progress during a sync
type SyncProgress struct {
	Phase           string // "activities", "streams"
	Total           int
	Completed       int
	CurrentActivity string
}

// SyncResult summarizes a completed sync
type SyncResult struct {
	ActivitiesFetched int
	SessionsImported  int
	TracesFetched     int
	Errors            []error
}

// SyncAll imports new rides and then backfills power traces for imported
// sessions that lack one. The progress channel is closed on return.
func (s *SyncService) SyncAll(ctx context.Context, progress chan<- SyncProgress) (*SyncResult, error) {
	if progress != nil {
		defer close(progress)
	}

	result := &SyncResult{}
	if err := s.syncActivities(ctx, progress, result); err != nil {
		return result, fmt.Errorf("syncing activities: %w", err)
	}
	if err := s.syncTraces(ctx, progress, result); err != nil {
		return result, fmt.Errorf("syncing power traces: %w", err)
	}
	return result, nil
}

func (s *SyncService) syncActivities(ctx context.Context, progress chan<- SyncProgress, result *SyncResult) error {
	lastSyncStr, _ := s.store.GetSyncState("last_activity_sync")
	var after time.Time
	if lastSyncStr != "" {
		after, _ = time.Parse(time.RFC3339, lastSyncStr)
	}

	if progress != nil {
		progress <- SyncProgress{Phase: "activities"}
	}

	cp := s.currentCP()

	activities, err := s.client.GetAllActivities(ctx, after, func(fetched int) {
		if progress != nil {
			progress <- SyncProgress{Phase: "activities", Total: fetched, Completed: fetched}
		}
	})
	if err != nil {
		return err
	}
	result.ActivitiesFetched = len(activities)

	for _, a := range activities {
		if !isRide(a) || !a.HasPower() {
			continue
		}

		existing, err := s.store.GetSessionByExternalID(a.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("checking activity %d: %w", a.ID, err))
			continue
		}
		if existing != nil {
			continue
		}

		sess := convertActivity(a, cp)
		if _, err := s.store.InsertSession(&sess); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("storing activity %d: %w", a.ID, err))
			continue
		}
		result.SessionsImported++
	}

	s.store.SetSyncState("last_activity_sync", time.Now().Format(time.RFC3339))
	return nil
}

func (s *SyncService) syncTraces(ctx context.Context, progress chan<- SyncProgress, result *SyncResult) error {
	sessions, err := s.store.ListSessionsNeedingSamples(streamBatchSize)
	if err != nil {
		return fmt.Errorf("finding sessions needing traces: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}

	if progress != nil {
		progress <- SyncProgress{Phase: "streams", Total: len(sessions)}
	}

	for i, sess := range sessions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if progress != nil {
			progress <- SyncProgress{
				Phase:           "streams",
				Total:           len(sessions),
				Completed:       i,
				CurrentActivity: sess.Date.Format("2006-01-02"),
			}
		}

		streams, err := s.client.GetActivityStreams(ctx, *sess.ExternalID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("activity %d: %w", *sess.ExternalID, err))
			continue
		}
		if !streams.HasWatts() {
			continue
		}

		samples := convertStreams(sess.ID, streams)
		if err := s.store.SavePowerSamples(sess.ID, samples); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("saving trace for session %d: %w", sess.ID, err))
			continue
		}
		result.TracesFetched++
	}

	if progress != nil {
		progress <- SyncProgress{Phase: "streams", Total: len(sessions), Completed: len(sessions)}
	}
	return nil
}

// RateLimitStatus exposes the client's remaining API budget
func (s *SyncService) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	return s.client.RateLimitStatus()
}

func (s *SyncService) currentCP() float64 {
	rec, err := s.store.GetCPRecord()
	if errors.Is(err, store.ErrNoCPRecord) || err != nil {
		return 0
	}
	return rec.CP
}

func isRide(a strava.Activity) bool {
	return a.Type == "Ride" || a.Type == "VirtualRide"
}

// convertActivity maps a Strava ride onto a session. Strava carries no
// perceived-effort rating, so the imported RPE is the model's own
// prediction for the ride's intensity and length.
func convertActivity(a strava.Activity, cp float64) store.Session {
	externalID := a.ID
	durationMinutes := float64(a.MovingTime) / 60

	rpe := analysis.PredictedDifficulty(a.AverageWatts, cp, durationMinutes, plan.StyleSteady)
	if rpe == 0 {
		rpe = 5 // no CP yet, assume a moderate ride
	}

	return store.Session{
		Date:            a.StartDate,
		DurationMinutes: durationMinutes,
		AveragePower:    a.AverageWatts,
		RPE:             rpe,
		Style:           plan.StyleSteady,
		Source:          "strava",
		ExternalID:      &externalID,
	}
}

func convertStreams(sessionID int64, streams *strava.Streams) []store.PowerSample {
	samples := make([]store.PowerSample, 0, len(streams.Time.Data))
	for i, offset := range streams.Time.Data {
		samples = append(samples, store.PowerSample{
			SessionID:  sessionID,
			TimeOffset: offset,
			Power:      streams.Watts.Data[i],
		})
	}
	return samples
}
