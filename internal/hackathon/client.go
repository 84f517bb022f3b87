package hackathon

import (
	"context"
	"net/url"
	"strings"
	"time"

	"hackmate/internal/platform/tracer"
	"hackmate/internal/registration/client"
	dErrors "hackmate/pkg/domain-errors"
)

// JSONGetter is satisfied by *client.Client.
type JSONGetter interface {
	GetJSON(ctx context.Context, op, path string, query url.Values, out any) error
}

type detailsData struct {
	HackathonID          string     `json:"hackathonId"`
	Name                 string     `json:"name"`
	RegistrationFee      int64      `json:"registrationFee"`
	Venue                string     `json:"venue"`
	Status               string     `json:"status"`
	RegistrationDeadline *time.Time `json:"registrationDeadline,omitempty"`
}

type detailsEnvelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    *detailsData `json:"data,omitempty"`
}

// Fetcher reads hackathon details from the backend.
type Fetcher struct {
	getter JSONGetter
	tracer tracer.Tracer
	now    func() time.Time
}

func NewFetcher(getter JSONGetter, t tracer.Tracer) *Fetcher {
	if t == nil {
		t = tracer.NewNoop()
	}
	return &Fetcher{getter: getter, tracer: t, now: time.Now}
}

// FetchDetails implements GET /hackathons/{id}.
func (f *Fetcher) FetchDetails(ctx context.Context, id string) (*Details, error) {
	ctx, span := f.tracer.Start(ctx, tracer.SpanFetchHackathon, tracer.String(tracer.AttrEventID, id))
	var err error
	defer func() { span.End(err) }()

	var env detailsEnvelope
	if err = f.getter.GetJSON(ctx, client.OpFetchHackathon, "/hackathons/"+url.PathEscape(id), nil, &env); err != nil {
		return nil, err
	}
	if !env.Success || env.Data == nil {
		msg := env.Message
		if msg == "" {
			msg = "Hackathon not found"
		}
		err = dErrors.New(dErrors.CodeNotFound, msg)
		return nil, err
	}

	d := &Details{
		ID:              env.Data.HackathonID,
		Name:            strings.TrimSpace(env.Data.Name),
		RegistrationFee: env.Data.RegistrationFee,
		Venue:           env.Data.Venue,
		Status:          ParseStatus(env.Data.Status),
		FetchedAt:       f.now(),
	}
	if d.ID == "" {
		d.ID = id
	}
	if env.Data.RegistrationDeadline != nil {
		d.RegistrationDeadline = *env.Data.RegistrationDeadline
	}
	return d, nil
}
