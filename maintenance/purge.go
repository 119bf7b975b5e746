// Package maintenance holds operator tasks that run outside the service.
package maintenance

import (
	"context"
	"errors"
	"fmt"

	"mahatour/models"
	"mahatour/store"

	"go.uber.org/zap"
)

// Report counts what a purge removed, or would remove on a dry run.
type Report struct {
	DryRun        bool `json:"dryRun"`
	Users         int  `json:"users"`
	GuideProfiles int  `json:"guideProfiles"`
	Connections   int  `json:"connections"`
	SavedPlaces   int  `json:"savedPlaces"`
	Bookings      int  `json:"bookings"`
	Itineraries   int  `json:"itineraries"`
}

func (r *Report) add(o Report) {
	r.Users += o.Users
	r.GuideProfiles += o.GuideProfiles
	r.Connections += o.Connections
	r.SavedPlaces += o.SavedPlaces
	r.Bookings += o.Bookings
	r.Itineraries += o.Itineraries
}

type Purger struct {
	store *store.Store
	log   *zap.Logger
}

func NewPurger(s *store.Store, log *zap.Logger) *Purger {
	return &Purger{store: s, log: log.Named("maintenance")}
}

// PurgeTestAccounts removes every user flagged as a test account along with
// the records that point at them. A failure stops the run; users already
// removed stay removed.
func (p *Purger) PurgeTestAccounts(ctx context.Context, dryRun bool) (Report, error) {
	report := Report{DryRun: dryRun}
	users, err := p.store.Users.List(ctx, store.Filter{"isTestAccount": true})
	if err != nil {
		return report, err
	}
	for _, u := range users {
		r, err := p.cascade(ctx, u, dryRun)
		report.add(r)
		if err != nil {
			return report, fmt.Errorf("purge %s: %w", u.Username, err)
		}
	}
	p.log.Info("test accounts purged",
		zap.Bool("dryRun", dryRun),
		zap.Int("users", report.Users),
		zap.Int("guideProfiles", report.GuideProfiles),
		zap.Int("connections", report.Connections),
		zap.Int("savedPlaces", report.SavedPlaces),
		zap.Int("bookings", report.Bookings),
		zap.Int("itineraries", report.Itineraries),
	)
	return report, nil
}

// RemoveUser deletes one user and everything that references them.
func (p *Purger) RemoveUser(ctx context.Context, id string, dryRun bool) (Report, error) {
	u, err := p.store.Users.Get(ctx, id)
	if err != nil {
		return Report{DryRun: dryRun}, err
	}
	r, err := p.cascade(ctx, *u, dryRun)
	r.DryRun = dryRun
	if err == nil {
		p.log.Info("user removed", zap.String("user", u.Username), zap.Bool("dryRun", dryRun))
	}
	return r, err
}

// cascade deletes every record that names the user (guide profile,
// connections and bookings on either side, saved places, itineraries) before
// the user itself, so an interrupted run never leaves records pointing at a
// missing user.
func (p *Purger) cascade(ctx context.Context, u models.User, dryRun bool) (Report, error) {
	var r Report
	steps := []struct {
		count *int
		del   func() (int64, error)
		list  func() (int, error)
	}{
		{&r.GuideProfiles,
			func() (int64, error) { return p.store.Guides.DeleteWhere(ctx, store.Filter{"userId": u.ID}) },
			func() (int, error) {
				l, err := p.store.Guides.List(ctx, store.Filter{"userId": u.ID})
				return len(l), err
			}},
		{&r.Connections,
			func() (int64, error) { return p.store.Connections.DeleteWhere(ctx, store.Filter{"touristId": u.ID}) },
			func() (int, error) {
				l, err := p.store.Connections.List(ctx, store.Filter{"touristId": u.ID})
				return len(l), err
			}},
		{&r.Connections,
			func() (int64, error) { return p.store.Connections.DeleteWhere(ctx, store.Filter{"guideId": u.ID}) },
			func() (int, error) {
				l, err := p.store.Connections.List(ctx, store.Filter{"guideId": u.ID})
				return len(l), err
			}},
		{&r.SavedPlaces,
			func() (int64, error) { return p.store.SavedPlaces.DeleteWhere(ctx, store.Filter{"userId": u.ID}) },
			func() (int, error) {
				l, err := p.store.SavedPlaces.List(ctx, store.Filter{"userId": u.ID})
				return len(l), err
			}},
		{&r.Bookings,
			func() (int64, error) { return p.store.Bookings.DeleteWhere(ctx, store.Filter{"userId": u.ID}) },
			func() (int, error) {
				l, err := p.store.Bookings.List(ctx, store.Filter{"userId": u.ID})
				return len(l), err
			}},
		{&r.Bookings,
			func() (int64, error) { return p.store.Bookings.DeleteWhere(ctx, store.Filter{"guideId": u.ID}) },
			func() (int, error) {
				l, err := p.store.Bookings.List(ctx, store.Filter{"guideId": u.ID})
				return len(l), err
			}},
		{&r.Itineraries,
			func() (int64, error) { return p.store.Itineraries.DeleteWhere(ctx, store.Filter{"userId": u.ID}) },
			func() (int, error) {
				l, err := p.store.Itineraries.List(ctx, store.Filter{"userId": u.ID})
				return len(l), err
			}},
	}

	for _, s := range steps {
		var (
			n   int
			err error
		)
		if dryRun {
			n, err = s.list()
		} else {
			var d int64
			d, err = s.del()
			n = int(d)
		}
		if err != nil {
			return r, err
		}
		*s.count += n
	}

	if !dryRun {
		if err := p.store.Users.Delete(ctx, u.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return r, err
		}
	}
	r.Users = 1
	return r, nil
}
