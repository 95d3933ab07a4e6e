package requestlifecycle

import (
	"log/slog"
	"time"

	httpadapter "pqrsd/contexts/citizen-services/request-lifecycle-service/adapters/http"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/adapters/memory"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/commands"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/notifications"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/projections"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/queries"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/services"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

type Module struct {
	Handler     httpadapter.Handler
	Identity    ports.IdentityResolver
	Engine      *commands.LifecycleEngine
	Dispatcher  *notifications.Dispatcher
	Registry    *projections.AssignmentRegistry
	Store       *memory.Store
	Attachments *memory.AttachmentStore
}

type Dependencies struct {
	Requests     ports.Repository
	Audit        ports.AuditTrail
	Attachments  ports.AttachmentStore
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	Radicados    ports.RadicadoGenerator
	Holidays     services.HolidayCalendar
	Location     *time.Location
	Observer     ports.TransitionObserver
	NotifyBuffer int
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Observer == nil {
		deps.Observer = ports.NopObserver{}
	}

	dispatcher := notifications.NewDispatcher(deps.NotifyBuffer, deps.Observer, deps.Logger)
	registry := projections.NewAssignmentRegistry(deps.Audit, deps.Logger)
	engine := commands.NewLifecycleEngine(commands.EngineDependencies{
		Requests:    deps.Requests,
		Registry:    registry,
		Dispatcher:  dispatcher,
		Attachments: deps.Attachments,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Radicados:   deps.Radicados,
		Holidays:    deps.Holidays,
		Location:    deps.Location,
		Observer:    deps.Observer,
		Logger:      deps.Logger,
	})

	return Module{
		Handler: httpadapter.Handler{
			Engine: engine,
			GetRequest: queries.GetRequestUseCase{
				Requests: deps.Requests,
				Logger:   deps.Logger,
			},
			GetByRadicado: queries.GetByRadicadoUseCase{
				Requests: deps.Requests,
				Logger:   deps.Logger,
			},
			CurrentHolder: queries.CurrentHolderUseCase{
				Requests: deps.Requests,
				Registry: registry,
			},
			History: queries.HistoryUseCase{
				Requests: deps.Requests,
				Audit:    deps.Audit,
				Logger:   deps.Logger,
			},
			DeadlineStatus: queries.DeadlineStatusUseCase{
				Requests: deps.Requests,
				Clock:    deps.Clock,
				Holidays: deps.Holidays,
				Location: deps.Location,
				Logger:   deps.Logger,
			},
			PreviewDueDate: queries.PreviewDueDateUseCase{
				Clock:    deps.Clock,
				Holidays: deps.Holidays,
				Location: deps.Location,
			},
			Summary: queries.SummaryUseCase{
				Requests: deps.Requests,
				Logger:   deps.Logger,
			},
			Logger: deps.Logger,
		},
		Identity:   httpadapter.HeaderIdentity{},
		Engine:     engine,
		Dispatcher: dispatcher,
		Registry:   registry,
	}
}

// NewInMemoryModule wires the module over in-process adapters. clock may be
// nil to use the store's wall clock.
func NewInMemoryModule(holidays services.HolidayCalendar, clock ports.Clock, logger *slog.Logger) Module {
	store := memory.NewStore(nil)
	attachments := memory.NewAttachmentStore()
	if clock == nil {
		clock = store
	}
	module := NewModule(Dependencies{
		Requests:    store,
		Audit:       store.Audit(),
		Attachments: attachments,
		Clock:       clock,
		IDGenerator: store,
		Radicados:   store,
		Holidays:    holidays,
		Logger:      logger,
	})
	module.Store = store
	module.Attachments = attachments
	return module
}
