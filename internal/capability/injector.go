package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/domain/manifest"
	"github.com/GriffinCanCode/Shelf/backend/internal/events"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/http/client"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/scraper"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/storage"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// DefaultStoreTimeout bounds one synchronous store access from the guest
const DefaultStoreTimeout = 2 * time.Second

var ErrMissingDependency = errors.New("capability dependency missing")

// Fetcher performs guest HTTP requests
type Fetcher interface {
	Do(ctx context.Context, req client.Request) (*client.Response, error)
}

// Deps are the host collaborators exposed to guests
type Deps struct {
	HTTP         Fetcher
	Preferences  storage.Store
	Keychain     storage.Store
	Bus          events.Publisher
	Metrics      *monitoring.Metrics
	Logger       *logging.Logger
	StoreTimeout time.Duration
}

// Injector installs host functions into fresh script contexts
type Injector struct {
	deps      Deps
	sanitizer *scraper.Sanitizer
}

// NewInjector validates deps and creates an injector
func NewInjector(deps Deps) (*Injector, error) {
	switch {
	case deps.HTTP == nil:
		return nil, fmt.Errorf("%w: http client", ErrMissingDependency)
	case deps.Preferences == nil:
		return nil, fmt.Errorf("%w: preferences store", ErrMissingDependency)
	case deps.Keychain == nil:
		return nil, fmt.Errorf("%w: keychain store", ErrMissingDependency)
	case deps.Bus == nil:
		return nil, fmt.Errorf("%w: notification bus", ErrMissingDependency)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = DefaultStoreTimeout
	}
	return &Injector{deps: deps, sanitizer: scraper.NewSanitizer()}, nil
}

// scope is the per-package view every injected function closes over
type scope struct {
	*Injector
	sc       *sandbox.Context
	vm       *goja.Runtime
	id       string
	category string
	logger   *logging.Logger
	parse    goja.Callable
}

// Inject binds sc to the package and installs every capability on its loop
func (i *Injector) Inject(ctx context.Context, sc *sandbox.Context, m manifest.Manifest) error {
	logger := i.deps.Logger.ForPackage(m.ID, m.Name)
	sc.Bind(m.ID, logger)

	return sc.Run(ctx, func(vm *goja.Runtime) error {
		parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
		if !ok {
			return errors.New("JSON.parse unavailable")
		}

		s := &scope{
			Injector: i,
			sc:       sc,
			vm:       vm,
			id:       m.ID,
			category: string(m.Kind.Category()),
			logger:   logger,
			parse:    parse,
		}

		installers := []func() error{
			s.installConsole,
			s.installFetch,
			s.installDOM,
			s.installStorage,
		}
		for _, install := range installers {
			if err := install(); err != nil {
				return err
			}
		}
		return nil
	})
}

// throw raises err as a JS exception inside a native function
func (s *scope) throw(err error) {
	panic(s.vm.NewGoError(err))
}

// allowed enforces per-package scoping of the optional id argument
func (s *scope) allowed(fn string, call goja.FunctionCall, idArg int) bool {
	arg := call.Argument(idArg)
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		return true
	}
	if arg.String() == s.id {
		return true
	}
	s.logger.Warn("Refusing cross-package access",
		zap.String("function", fn),
		zap.String("requested", arg.String()))
	return false
}

func (s *scope) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.deps.StoreTimeout)
}
