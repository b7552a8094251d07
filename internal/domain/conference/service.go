package conference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/docease/docease/internal/domain/user"
	"github.com/docease/docease/internal/platform/eventbus"
	"github.com/docease/docease/internal/platform/notification"
)

var validate = validator.New()

// UserDirectory resolves account profiles for display names.
type UserDirectory interface {
	ListByIDs(ctx context.Context, ids []string) (map[string]*user.Profile, error)
}

type Service struct {
	conferences ConferenceRepository
	users       UserDirectory
	templates   *notification.TemplateEngine
	bus         eventbus.Publisher
	logger      zerolog.Logger
	reuseWindow time.Duration
	now         func() time.Time
}

func NewService(
	conferences ConferenceRepository,
	users UserDirectory,
	templates *notification.TemplateEngine,
	bus eventbus.Publisher,
	reuseWindow time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		conferences: conferences,
		users:       users,
		templates:   templates,
		bus:         bus,
		logger:      logger.With().Str("component", "conference").Logger(),
		reuseWindow: reuseWindow,
		now:         time.Now,
	}
}

// Open returns the conference between hostID and attendeeID, reusing the
// latest one when it is younger than the reuse window and creating a new one
// otherwise. The other participant is invited over the live stream.
func (s *Service) Open(ctx context.Context, callerID, hostID, attendeeID string) (conf *Conference, created bool, err error) {
	if hostID == "" || attendeeID == "" {
		return nil, false, fmt.Errorf("%w: Please provide both hostId and attendeeId", ErrInvalid)
	}
	if hostID == attendeeID {
		return nil, false, fmt.Errorf("%w: host and attendee must differ", ErrInvalid)
	}
	if callerID != hostID && callerID != attendeeID {
		return nil, false, ErrForbidden
	}

	conf, err = s.conferences.Latest(ctx, hostID, attendeeID)
	switch {
	case err == nil && s.now().Sub(conf.CreatedAt) < s.reuseWindow:
	case err == nil || errors.Is(err, ErrNotFound):
		conf = &Conference{HostID: hostID, AttendeeID: attendeeID}
		if err := s.conferences.Create(ctx, conf); err != nil {
			return nil, false, fmt.Errorf("create conference: %w", err)
		}
		created = true
	default:
		return nil, false, fmt.Errorf("find conference: %w", err)
	}

	s.attachProfiles(ctx, conf)
	s.invite(conf, callerID, created)
	return conf, created, nil
}

// Get returns a conference the caller participates in.
func (s *Service) Get(ctx context.Context, callerID string, id uuid.UUID) (*Conference, error) {
	conf, err := s.conferences.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conf.IsParticipant(callerID) {
		return nil, ErrForbidden
	}
	s.attachProfiles(ctx, conf)
	return conf, nil
}

// Join validates that the caller may enter the conference room.
func (s *Service) Join(ctx context.Context, callerID string, req JoinRequest) (*Conference, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: Please provide conferenceId", ErrInvalid)
	}
	return s.Get(ctx, callerID, uuid.MustParse(req.VideoConferenceID))
}

func (s *Service) attachProfiles(ctx context.Context, conf *Conference) {
	profiles, err := s.users.ListByIDs(ctx, []string{conf.HostID, conf.AttendeeID})
	if err != nil {
		s.logger.Warn().Err(err).Str("conference_id", conf.ID.String()).Msg("load participant profiles")
		return
	}
	conf.Host = profiles[conf.HostID]
	conf.Attendee = profiles[conf.AttendeeID]
}

func (s *Service) invite(conf *Conference, callerID string, created bool) {
	caller := conf.Host
	if callerID == conf.AttendeeID {
		caller = conf.Attendee
	}
	if caller == nil {
		caller = &user.Profile{ID: callerID}
	}

	tpl := notification.TemplateConferenceRejoin
	if created {
		tpl = notification.TemplateConferenceInvite
	}
	r, err := s.templates.Render(tpl, map[string]string{"caller_name": caller.DisplayName()})
	if err == nil {
		err = s.bus.Publish(eventbus.ConferenceInvite{
			UserID:            conf.Counterpart(callerID),
			Message:           r.Message,
			VideoConferenceID: conf.ID,
		})
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("conference_id", conf.ID.String()).Msg("publish conference invite")
	}
}
