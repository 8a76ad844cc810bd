// Package songbird implements the ten operations exposed to hosts: playing
// sounds by description, playback control, phrase bindings and listings.
//
// Every operation takes a request struct and returns a human-readable status
// string starting with "SONGBIRD". No error escapes an operation: failures
// are classified into a [Kind], logged, counted, and rendered as status text
// at the operation boundary.
package songbird

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrTrintignant/Songbird/internal/binding"
	"github.com/DrTrintignant/Songbird/internal/catalog"
	"github.com/DrTrintignant/Songbird/internal/credential"
	"github.com/DrTrintignant/Songbird/internal/matcher"
	"github.com/DrTrintignant/Songbird/internal/observe"
	"github.com/DrTrintignant/Songbird/internal/playback"
	"github.com/DrTrintignant/Songbird/internal/policy"
	"github.com/DrTrintignant/Songbird/internal/voicecmd"
	"github.com/DrTrintignant/Songbird/pkg/audio"
	"github.com/DrTrintignant/Songbird/pkg/freesound"
)

// Prefix starts every status string.
const Prefix = "SONGBIRD: "

// LocalUsername is recorded as the author of sounds played from the cache.
const LocalUsername = "Local Cache"

// Operation names used in logs, metrics and spans.
const (
	OpPlaySound    = "play_sound"
	OpControl      = "control"
	OpBindSound    = "bind_sound"
	OpBindMultiple = "bind_multiple"
	OpReplayBound  = "replay_bound"
	OpListBound    = "list_bound"
	OpUnbindSound  = "unbind_sound"
	OpUnbindAll    = "unbind_all"
	OpListCached   = "list_cached"
	OpTest         = "test"
)

// Cache is the local sound cache: a listable, writable directory.
// [*catalog.Catalog] implements it.
type Cache interface {
	List() ([]catalog.Entry, error)
	Save(name, id, ext string, r io.Reader) (catalog.Entry, error)
	Dir() string
}

// Remote finds and downloads sounds from the provider.
// [*remote.Aggregator] implements it.
type Remote interface {
	Collect(ctx context.Context, query string) ([]freesound.Sound, error)
	Download(ctx context.Context, s freesound.Sound) (data []byte, ext string, err error)
}

// Operations is the set of operations exposed to hosts. [*Service]
// implements it; front ends depend on this interface.
type Operations interface {
	PlaySound(ctx context.Context, req PlaySoundRequest) string
	Control(ctx context.Context, req ControlRequest) string
	BindSound(ctx context.Context, req BindSoundRequest) string
	BindMultiple(ctx context.Context, req BindMultipleRequest) string
	ReplayBound(ctx context.Context, req ReplayBoundRequest) string
	ListBound(ctx context.Context) string
	UnbindSound(ctx context.Context, req UnbindRequest) string
	UnbindAll(ctx context.Context) string
	ListCached(ctx context.Context) string
	Test(ctx context.Context) string
}

var _ Operations = (*Service)(nil)

// Deps are the collaborators of a [Service]. Cache, Remote, Bindings and
// Player are required; the rest default when nil.
type Deps struct {
	Cache    Cache
	Remote   Remote
	Bindings binding.Store
	Player   audio.Player

	// Credentials reports whether an API key is configured, for Test.
	Credentials credential.Source

	// KeyFile is the path of the API key file named in Test output.
	KeyFile string

	Session  *playback.Session
	Matcher  *matcher.Matcher
	Policy   *policy.Policy
	Commands *voicecmd.Interpreter
	Metrics  *observe.Metrics

	// Rand drives remote selection. Nil uses the package-level generator.
	Rand *rand.Rand

	// Name and Version are reported by Test.
	Name    string
	Version string
}

// Service runs the exposed operations. It is safe for concurrent use; the
// binding store serializes its own file access.
type Service struct {
	cache    Cache
	remote   Remote
	bindings binding.Store
	player   audio.Player
	creds    credential.Source
	keyFile  string
	session  *playback.Session
	matcher  *matcher.Matcher
	policy   *policy.Policy
	commands *voicecmd.Interpreter
	metrics  *observe.Metrics
	rng      *rand.Rand
	name     string
	version  string
	validate *validator.Validate
}

// New builds a Service from d.
func New(d Deps) (*Service, error) {
	var errs []error
	if d.Cache == nil {
		errs = append(errs, errors.New("songbird: Cache is required"))
	}
	if d.Remote == nil {
		errs = append(errs, errors.New("songbird: Remote is required"))
	}
	if d.Bindings == nil {
		errs = append(errs, errors.New("songbird: Bindings is required"))
	}
	if d.Player == nil {
		errs = append(errs, errors.New("songbird: Player is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	s := &Service{
		cache:    d.Cache,
		remote:   d.Remote,
		bindings: d.Bindings,
		player:   d.Player,
		creds:    d.Credentials,
		keyFile:  d.KeyFile,
		session:  d.Session,
		matcher:  d.Matcher,
		policy:   d.Policy,
		commands: d.Commands,
		metrics:  d.Metrics,
		rng:      d.Rand,
		name:     d.Name,
		version:  d.Version,
		validate: newValidator(),
	}
	if s.session == nil {
		s.session = playback.NewSession()
	}
	if s.matcher == nil {
		s.matcher = matcher.New(s.cache, s.session)
	}
	if s.policy == nil {
		s.policy = policy.New(nil)
	}
	if s.commands == nil {
		s.commands = voicecmd.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.creds == nil {
		s.creds = credential.NewFile(s.keyFile)
	}
	if s.name == "" {
		s.name = "Songbird"
	}
	if s.version == "" {
		s.version = "dev"
	}
	return s, nil
}

// Session returns the playback session shared by the operations.
func (s *Service) Session() *playback.Session { return s.session }

// Cache returns the local sound cache.
func (s *Service) Cache() Cache { return s.cache }

// run is the operation boundary. It traces and times fn, converts any error
// into a status string and records the outcome.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) string {
	ctx, span := observe.StartSpan(ctx, "songbird."+op, trace.WithAttributes(
		attribute.String("operation", op),
	))
	start := time.Now()

	status, err := fn(ctx)
	outcome := "ok"
	if err != nil {
		var se *Error
		if !errors.As(err, &se) {
			se = fail(Classify(err), op, "Error - "+err.Error(), err)
		}
		outcome = se.Kind.String()
		status = Prefix + se.Msg
		logFailure(ctx, op, se)
	}

	s.metrics.RecordOperation(ctx, op, outcome, time.Since(start))
	span.SetAttributes(attribute.String("outcome", outcome))
	observe.EndSpan(span, err)
	return status
}

// logFailure logs expected outcomes such as "not found" at info level and
// everything else as a warning.
func logFailure(ctx context.Context, op string, se *Error) {
	log := observe.Logger(ctx)
	attrs := []any{"op", op, "kind", se.Kind.String(), "msg", se.Msg}
	if se.Err != nil {
		attrs = append(attrs, "err", se.Err)
	}
	switch se.Kind {
	case KindNotFound, KindValidation:
		log.Info("songbird: operation declined", attrs...)
	default:
		log.Warn("songbird: operation failed", attrs...)
	}
}

// statusf formats a status string with the standard prefix.
func statusf(format string, args ...any) string {
	return Prefix + fmt.Sprintf(format, args...)
}

// keyFolder is the directory the API key file is expected in.
func (s *Service) keyFolder() string {
	if s.keyFile == "" {
		return s.cache.Dir()
	}
	return filepath.Dir(s.keyFile)
}

// Test reports the service name, version and whether an API key is present.
func (s *Service) Test(ctx context.Context) string {
	return s.run(ctx, OpTest, func(ctx context.Context) (string, error) {
		if _, err := s.creds.Token(); err != nil {
			slog.Debug("songbird: test without credential", "err", err)
			return fmt.Sprintf("SONGBIRD Test: %s v%s - Active but no API key found. Create api_key.txt in: %s",
				s.name, s.version, s.keyFolder()), nil
		}
		return fmt.Sprintf("SONGBIRD Test: %s v%s - Active with Freesound API integration. API key loaded from file.",
			s.name, s.version), nil
	})
}
