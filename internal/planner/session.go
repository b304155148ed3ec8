// Package planner combines week documents and list documents into the merged
// payload exchanged with the presentation layer, and splits saved payloads
// back into their documents.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"github.com/starford/calendle/internal/apperr"
	"github.com/starford/calendle/internal/document"
	"github.com/starford/calendle/internal/ident"
	"github.com/starford/calendle/internal/storage"
	"github.com/starford/calendle/internal/week"
)

// Session coordinates the document store and week addressing for one data
// directory and one list catalog.
type Session struct {
	store  storage.Provider
	lists  []string
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the clock used to determine "today".
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDs overrides the bullet identifier generator. newID must be safe for
// concurrent use.
func WithIDs(newID func() string) Option {
	return func(s *Session) { s.newID = newID }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Snapshot is what the presentation layer receives on cold start.
type Snapshot struct {
	Data  document.Merged
	List  string
	Lists []string
}

// New creates a session over store. lists is the catalog of recognized list
// names; the first entry is the list shown on startup.
func New(store storage.Provider, lists []string, opts ...Option) (*Session, error) {
	if len(lists) == 0 {
		return nil, errors.New("planner: at least one list is required")
	}
	s := &Session{
		store:  store,
		lists:  slices.Clone(lists),
		now:    time.Now,
		newID:  ident.New,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lists returns the list catalog.
func (s *Session) Lists() []string {
	return slices.Clone(s.lists)
}

// IsKnownList reports whether name is in the catalog.
func (s *Session) IsKnownList(name string) bool {
	return slices.Contains(s.lists, name)
}

// Bootstrap prepares the data directory on cold start: the root, the current
// week and every catalog list are created if absent. It returns the current
// week merged with the first list.
func (s *Session) Bootstrap(ctx context.Context) (*Snapshot, error) {
	if err := s.store.EnsureRoot(); err != nil {
		return nil, err
	}
	today := s.now()
	if err := s.ensureWeek(today); err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, name := range s.lists {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			return s.ensureList(name)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, err := s.LoadMerged(ctx, today, s.lists[0])
	if err != nil {
		return nil, err
	}
	return &Snapshot{Data: data, List: s.lists[0], Lists: s.Lists()}, nil
}

// LoadMerged returns the week containing date followed by the list document
// named list. The week is created with default contents if absent, as is the
// list when it belongs to the catalog.
func (s *Session) LoadMerged(ctx context.Context, date time.Time, list string) (document.Merged, error) {
	if err := ctx.Err(); err != nil {
		return document.Merged{}, err
	}
	if list == "" || week.IsKey(list) {
		return document.Merged{}, apperr.Invalid("list", "%q is not a list name", list)
	}
	if err := s.ensureWeek(date); err != nil {
		return document.Merged{}, err
	}
	if s.IsKnownList(list) {
		if err := s.ensureList(list); err != nil {
			return document.Merged{}, err
		}
	}

	days, err := s.store.ReadWeek(week.KeyOf(date))
	if err != nil {
		return document.Merged{}, err
	}
	doc, err := s.store.ReadList(list)
	if err != nil {
		return document.Merged{}, err
	}
	return document.Merged{Days: days, List: doc}, nil
}

// SaveMerged validates payload and writes its week and list documents. Both
// writes are attempted even if one fails; the failures are joined.
func (s *Session) SaveMerged(ctx context.Context, payload document.Merged) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := s.validate(payload)
	if err != nil {
		return err
	}

	list := payload.List
	list.Date = nil

	weekErr := s.store.WriteDocument(key, payload.Days)
	listErr := s.store.WriteDocument(list.Name, list)
	if weekErr == nil && listErr == nil {
		s.logger.Debug("planner: saved",
			slog.String("week", key),
			slog.String("list", list.Name))
	}
	return errors.Join(weekErr, listErr)
}

// DecodePayload parses a merged payload from the wire. Shape errors are
// reported as validation errors.
func DecodePayload(data []byte) (document.Merged, error) {
	var m document.Merged
	if err := json.Unmarshal(data, &m); err != nil {
		return document.Merged{}, &apperr.ValidationError{Field: "payload", Reason: err.Error(), Err: err}
	}
	return m, nil
}

// validate checks payload and returns the week key its days belong to.
func (s *Session) validate(p document.Merged) (string, error) {
	if len(p.Days) == 0 && p.List.Name == "" {
		return "", &apperr.ValidationError{Field: "payload", Reason: document.ErrEmptyPayload.Error(), Err: document.ErrEmptyPayload}
	}
	known := make([]any, len(s.lists))
	for i, l := range s.lists {
		known[i] = l
	}
	errs := validation.Errors{
		"list": validation.Validate(p.List.Name,
			validation.Required,
			validation.In(known...).Error("must be a known list")),
		"days": validation.Validate([]document.Day(p.Days),
			validation.Required,
			validation.Length(document.DaysPerWeek, document.DaysPerWeek)),
	}
	for i, d := range p.Days {
		errs[fmt.Sprintf("days.%d.date", i)] = validation.Validate(d.Date,
			validation.Required,
			validation.Date(week.DateLayout))
	}
	if err := errs.Filter(); err != nil {
		return "", &apperr.ValidationError{Field: "payload", Reason: err.Error(), Err: err}
	}

	// Days run Monday to Sunday of a single week.
	monday, err := week.ParseDate(p.Days[0].Date)
	if err != nil {
		return "", apperr.Invalid("days.0.date", "%v", err)
	}
	if !week.StartOf(monday).Equal(monday) {
		return "", apperr.Invalid("days.0.date", "%s is a %s, not a Monday", p.Days[0].Date, monday.Weekday())
	}
	for i, d := range p.Days {
		if want := monday.AddDate(0, 0, i).Format(week.DateLayout); d.Date != want {
			return "", apperr.Invalid(fmt.Sprintf("days.%d.date", i), "got %s, want %s", d.Date, want)
		}
	}
	return week.KeyOf(monday), nil
}

func (s *Session) ensureWeek(date time.Time) error {
	key := week.KeyOf(date)
	created, err := s.store.EnsureDocument(key, week.Default(week.StartOf(date), s.newID))
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("planner: created week", slog.String("week", key))
	}
	return nil
}

func (s *Session) ensureList(name string) error {
	created, err := s.store.EnsureDocument(name, document.NewList(name, s.newID()))
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("planner: created list", slog.String("list", name))
	}
	return nil
}
