package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/km-arc/go-bootstrap/framework/app"
	"github.com/km-arc/go-bootstrap/framework/bus"
	"github.com/km-arc/go-bootstrap/framework/container"
	gohttp "github.com/km-arc/go-bootstrap/framework/http"
	"github.com/km-arc/go-bootstrap/framework/logging"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
	"github.com/km-arc/go-bootstrap/framework/routing"
)

// ── Requests ─────────────────────────────────────────────────────────────────

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       int       `json:"age"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateUser struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"required,email"`
	Age   int    `json:"age" validate:"gte=18"`
}

type GetUser struct {
	ID string `json:"id" validate:"required,uuid"`
}

type ListUsers struct{}

type DeleteUser struct {
	ID string `json:"id" validate:"required,uuid"`
}

// UserCreated is published once a user is stored.
type UserCreated struct {
	User User
}

type userNotFound struct{ id string }

func (e userNotFound) Error() string   { return "user " + e.id + " not found" }
func (e userNotFound) StatusCode() int { return http.StatusNotFound }

// ── Store ────────────────────────────────────────────────────────────────────

// userStore keeps users in memory for the lifetime of the process.
type userStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func newUserStore() *userStore {
	return &userStore{users: make(map[string]User)}
}

func (s *userStore) add(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *userStore) get(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *userStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	delete(s.users, id)
	return ok
}

func (s *userStore) list() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// usersProvider registers the store the handlers share.
type usersProvider struct {
	container.BaseProvider
}

func (p *usersProvider) Register(cat *container.Catalog) error {
	_, err := container.RegisterFunc(cat, container.Singleton, func(container.Activation) (*userStore, error) {
		return newUserStore(), nil
	}, container.WithName("UserStore"))
	return err
}

func (p *usersProvider) Provides() []container.ServiceKey {
	return []container.ServiceKey{container.Key[*userStore]()}
}

// ── Handlers ─────────────────────────────────────────────────────────────────

type createUserHandler struct {
	store *userStore
	d     *bus.Dispatcher
	now   func() time.Time
}

func (h *createUserHandler) Handle(ctx context.Context, cmd CreateUser) (User, error) {
	u := User{
		ID:        uuid.NewString(),
		Name:      cmd.Name,
		Email:     cmd.Email,
		Age:       cmd.Age,
		CreatedAt: h.now(),
	}
	h.store.add(u)
	if err := bus.Publish(ctx, h.d, UserCreated{User: u}); err != nil {
		return User{}, err
	}
	return u, nil
}

type welcomeMailer struct {
	log *logging.NamedLogger
}

func (m *welcomeMailer) Handle(ctx context.Context, n UserCreated) error {
	m.log.Info(ctx, fmt.Sprintf("Welcome mail queued for %s <%s>", n.User.Name, n.User.Email))
	return nil
}

// usersCommand reports the stored users on the console.
type usersCommand struct {
	store *userStore
	log   *logging.NamedLogger
}

func (c *usersCommand) Command() string     { return "users" }
func (c *usersCommand) Description() string { return "lists the stored users" }

func (c *usersCommand) Execute(ctx context.Context) error {
	users := c.store.list()
	c.log.Info(ctx, fmt.Sprintf("%d user(s)", len(users)))
	for _, u := range users {
		c.log.Info(ctx, fmt.Sprintf("%s  %s <%s>", u.ID, u.Name, u.Email))
	}
	return nil
}

func store(a container.Activation) (*userStore, error) {
	return container.Resolve[*userStore](a)
}

func loggers(a container.Activation) (*logging.Registry, error) {
	return container.Resolve[*logging.Registry](a)
}

// userDescriptors lists the handlers, subscribers and console commands of
// the users module.
func userDescriptors() []container.Descriptor {
	storeKey := container.Key[*userStore]()
	return []container.Descriptor{
		pipeline.HandlerDescriptor("CreateUserHandler", func(a container.Activation) (pipeline.RequestHandler[CreateUser, User], error) {
			s, err := store(a)
			if err != nil {
				return nil, err
			}
			d, err := container.ResolveKey[*bus.Dispatcher](a, bus.MediatorKey())
			if err != nil {
				return nil, err
			}
			return &createUserHandler{store: s, d: d, now: time.Now}, nil
		}, storeKey),

		pipeline.HandlerDescriptor("GetUserHandler", func(a container.Activation) (pipeline.RequestHandler[GetUser, User], error) {
			s, err := store(a)
			if err != nil {
				return nil, err
			}
			return pipeline.RequestHandlerFunc[GetUser, User](func(_ context.Context, q GetUser) (User, error) {
				u, ok := s.get(q.ID)
				if !ok {
					return User{}, userNotFound{id: q.ID}
				}
				return u, nil
			}), nil
		}, storeKey),

		pipeline.HandlerDescriptor("ListUsersHandler", func(a container.Activation) (pipeline.RequestHandler[ListUsers, []User], error) {
			s, err := store(a)
			if err != nil {
				return nil, err
			}
			return pipeline.RequestHandlerFunc[ListUsers, []User](func(context.Context, ListUsers) ([]User, error) {
				return s.list(), nil
			}), nil
		}, storeKey),

		pipeline.HandlerDescriptor("DeleteUserHandler", func(a container.Activation) (pipeline.RequestHandler[DeleteUser, pipeline.Unit], error) {
			s, err := store(a)
			if err != nil {
				return nil, err
			}
			return pipeline.RequestHandlerFunc[DeleteUser, pipeline.Unit](func(_ context.Context, cmd DeleteUser) (pipeline.Unit, error) {
				if !s.remove(cmd.ID) {
					return pipeline.Unit{}, userNotFound{id: cmd.ID}
				}
				return pipeline.Unit{}, nil
			}), nil
		}, storeKey),

		pipeline.NotificationDescriptor("WelcomeMailer", func(a container.Activation) (pipeline.NotificationHandlerOf[UserCreated], error) {
			reg, err := loggers(a)
			if err != nil {
				return nil, err
			}
			return &welcomeMailer{log: reg.GetOrCreate("WelcomeMailer")}, nil
		}),

		app.CommandDescriptor("UsersCommand", func(a container.Activation) (app.CommandProcessor, error) {
			s, err := store(a)
			if err != nil {
				return nil, err
			}
			reg, err := loggers(a)
			if err != nil {
				return nil, err
			}
			return &usersCommand{store: s, log: reg.GetOrCreate("UsersCommand")}, nil
		}, storeKey),
	}
}

// ── Routes ───────────────────────────────────────────────────────────────────

// usersRoutes mounts the users API. A non-empty adminToken guards deletion
// behind a bearer token.
func usersRoutes(adminToken string) func(*routing.Router, *bus.Dispatcher) {
	return func(r *routing.Router, d *bus.Dispatcher) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			gohttp.NewResponse(w).Success(map[string]any{"message": "Welcome to GoBootstrap!", "version": app.Version})
		})

		r.Prefix("/api/v1", func(api *routing.Router) {
			api.Get("/users", routing.Endpoint[ListUsers, []User](d))
			api.Post("/users", routing.Endpoint[CreateUser, User](d))
			api.Get("/users/{id}", routing.Dispatch[GetUser](d))
			api.Group(func(admin *routing.Router) {
				if adminToken != "" {
					admin.Middleware(routing.RequireBearer(adminToken))
				}
				admin.Delete("/users/{id}", routing.Endpoint[DeleteUser, pipeline.Unit](d))
			})
		})
	}
}
