package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"dailyverse/internal/content"
	"dailyverse/internal/delivery"
	"dailyverse/internal/schedule"
	logx "dailyverse/pkg/logx"
)

// Register creates or updates the schedule for recipientID.
//
// All fields are validated before the store is touched. An existing record
// keeps its rotation cursor and last delivered date, so re-registering on the
// day of a delivery does not cause a second one. Re-registration also clears
// the unreachable flag and any content backoff.
func (s *Service) Register(ctx context.Context, recipientID, version, timeOfDay, timezone string) (schedule.Record, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return schedule.Record{}, &RegistrationError{Field: "recipient_id", Err: ErrInvalidID}
	}
	tod, err := schedule.ParseTimeOfDay(timeOfDay)
	if err != nil {
		return schedule.Record{}, &RegistrationError{Field: "time_of_day", Value: timeOfDay, Err: ErrInvalidTime}
	}
	tz := strings.TrimSpace(timezone)
	if _, err := LoadZone(tz); err != nil {
		return schedule.Record{}, &RegistrationError{Field: "timezone", Value: timezone, Err: ErrInvalidTimezone}
	}
	v, err := s.resolveVersion(ctx, version)
	if err != nil {
		return schedule.Record{}, err
	}

	now := s.now().UTC()
	var saved schedule.Record
	err = s.store.Update(ctx, recipientID, func(rec *schedule.Record, found bool) error {
		if !found {
			*rec = schedule.Record{CreatedAt: now}
		}
		rec.RecipientID = recipientID
		rec.ContentVersion = v.ID
		rec.TimeOfDay = tod
		rec.Timezone = tz
		rec.UnreachableSince = nil
		rec.UnreachableReason = ""
		rec.UpdatedAt = now
		saved = rec.Clone()
		return nil
	})
	if err != nil {
		return schedule.Record{}, err
	}
	s.backoff.clear(recipientID)
	s.reported.Delete(recipientID)

	s.log.Info("recipient registered",
		logx.String("recipient", recipientID),
		logx.String("version", v.ID),
		logx.String("time_of_day", tod.String()),
		logx.String("tz", tz))
	return saved, nil
}

func (s *Service) resolveVersion(ctx context.Context, input string) (content.Version, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return content.Version{}, &RegistrationError{Field: "version", Value: input, Err: ErrInvalidVersion}
	}
	cctx, cancel := context.WithTimeout(ctx, s.options().RequestTimeout)
	defer cancel()
	all, err := s.provider.Versions(cctx)
	if err != nil {
		return content.Version{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	v, err := content.Resolve(all, input)
	if err != nil {
		return content.Version{}, &RegistrationError{Field: "version", Value: input, Err: ErrInvalidVersion}
	}
	return v, nil
}

// ListAvailableVersions returns the common English versions offered during setup.
func (s *Service) ListAvailableVersions(ctx context.Context) ([]content.Version, error) {
	cctx, cancel := context.WithTimeout(ctx, s.options().RequestTimeout)
	defer cancel()
	all, err := s.provider.Versions(cctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return content.CommonEnglish(all), nil
}

// Unregister deletes the recipient's schedule. It reports whether one existed.
func (s *Service) Unregister(ctx context.Context, recipientID string) (bool, error) {
	recipientID = strings.TrimSpace(recipientID)
	ok, err := s.store.Delete(ctx, recipientID)
	if err != nil {
		return false, err
	}
	s.backoff.clear(recipientID)
	s.reported.Delete(recipientID)
	if ok {
		s.log.Info("recipient unregistered", logx.String("recipient", recipientID))
	}
	return ok, nil
}

// Lookup returns the stored schedule, if any.
func (s *Service) Lookup(ctx context.Context, recipientID string) (schedule.Record, bool, error) {
	return s.store.Get(ctx, strings.TrimSpace(recipientID))
}

// NextDelivery returns when rec is next expected to receive a passage.
func (s *Service) NextDelivery(rec schedule.Record) (time.Time, error) {
	loc, err := s.location(rec.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return nextSlot(rec, loc, s.now(), s.options().CatchUp), nil
}

// Quote fetches a random curated passage in the recipient's version (or the
// default version when unregistered). It never changes schedule state.
func (s *Service) Quote(ctx context.Context, recipientID string) (delivery.Message, error) {
	opts := s.options()
	version := opts.DefaultVersion
	if rec, ok, err := s.store.Get(ctx, strings.TrimSpace(recipientID)); err == nil && ok {
		version = rec.ContentVersion
	}
	if version == "" {
		return delivery.Message{}, errors.New("no bible version configured")
	}

	items := content.Curated()
	item := items[rand.Intn(len(items))]
	fctx, cancel := context.WithTimeout(ctx, opts.RequestTimeout)
	p, err := s.provider.Fetch(fctx, version, item.Reference)
	cancel()
	if err != nil {
		return delivery.Message{}, err
	}
	return delivery.ComposeQuote(p, s.versionLabel(ctx, version, opts.RequestTimeout)), nil
}
