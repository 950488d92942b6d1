package google

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/harrisonrobin/friday/pkg/auth"
	"github.com/harrisonrobin/friday/pkg/config"
	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/harrisonrobin/friday/pkg/source"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// NewClient creates a calendar client for acct from the token.json in its
// config folder.
func NewClient(ctx context.Context, clientSecretFile string, acct config.GoogleAccount, timezone string, log *zap.Logger) (*CalendarClient, error) {
	oc, err := auth.GoogleConfig(clientSecretFile)
	if err != nil {
		return nil, err
	}
	httpClient, err := auth.Client(ctx, oc, filepath.Join(acct.ConfigFolder, auth.GoogleTokenFile), log)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", acct.Name(), err)
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}
	return NewCalendarClient(srv, acct.Name(), acct.Calendars, timezone, log), nil
}

// Adapter merges the events of every configured account into one source.
// An account that could not be set up, or fails to answer, makes the whole
// source unavailable.
type Adapter struct {
	Location *time.Location

	clients []*CalendarClient
	broken  []error
}

func NewAdapter(loc *time.Location) *Adapter {
	return &Adapter{Location: loc}
}

func (a *Adapter) Name() string     { return SourceName }
func (a *Adapter) Kind() model.Kind { return model.KindEvent }

// Add registers a ready client.
func (a *Adapter) Add(c *CalendarClient) {
	a.clients = append(a.clients, c)
}

// AddAccount builds and registers a client for acct, remembering the
// failure if it cannot be built.
func (a *Adapter) AddAccount(ctx context.Context, clientSecretFile string, acct config.GoogleAccount, timezone string, log *zap.Logger) {
	c, err := NewClient(ctx, clientSecretFile, acct, timezone, log)
	if err != nil {
		a.broken = append(a.broken, err)
		return
	}
	a.Add(c)
}

func (a *Adapter) Fetch(ctx context.Context, r source.Range) ([]model.RawRecord, error) {
	if len(a.broken) > 0 {
		return nil, source.Unavailable(SourceName, errors.Join(a.broken...))
	}
	loc := a.Location
	if loc == nil {
		loc = time.Local
	}
	from, to := r.Bounds(loc)

	perClient := make([][]model.RawRecord, len(a.clients))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range a.clients {
		i, c := i, c // per-iteration copies (go directive is 1.21)
		g.Go(func() error {
			recs, err := c.Records(gctx, from, to)
			if err != nil {
				return fmt.Errorf("account %s: %w", c.Label(), err)
			}
			perClient[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, source.Unavailable(SourceName, err)
	}

	var out []model.RawRecord
	for _, recs := range perClient {
		out = append(out, recs...)
	}
	return out, nil
}
