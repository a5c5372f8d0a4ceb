// Package api serves the conductor dashboard's JSON API.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"swiftroute/internal/auth"
	"swiftroute/internal/forecast"
	"swiftroute/internal/sim"
)

type Server struct {
	bus        *sim.Bus
	sessions   *auth.Sessions
	forecaster *forecast.Forecaster
	board      *forecast.Board
	started    time.Time

	app *fiber.App
}

func NewServer(bus *sim.Bus, sessions *auth.Sessions, forecaster *forecast.Forecaster) *Server {
	s := &Server{
		bus:        bus,
		sessions:   sessions,
		forecaster: forecaster,
		board:      &forecast.Board{},
		started:    time.Now(),
	}

	webApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	webApp.Use(recover.New())
	webApp.Use(NewLogger())
	webApp.Use(cors.New())

	webApp.Get("/health", s.health)

	group := webApp.Group("/api")
	group.Get("/route", s.getRoute)
	group.Get("/state", s.getState)

	group.Post("/login", s.login)
	group.Post("/logout", s.RequireSession(), s.logout)

	tickets := group.Group("/tickets", s.RequireSession())
	tickets.Get("/", s.listTickets)
	tickets.Post("/", s.issueTicket)
	tickets.Delete("/:id", s.removeTicket)

	group.Post("/forecast", s.postForecast)
	group.Get("/forecast", s.getForecast)

	s.app = webApp
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"bus":    s.bus.Name(),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) getRoute(c *fiber.Ctx) error {
	r := s.bus.Route()
	return c.JSON(fiber.Map{
		"name":  r.Name,
		"stops": r.Stops(),
	})
}

func (s *Server) getState(c *fiber.Ctx) error {
	return c.JSON(s.bus.Snapshot())
}

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	c.Status(status)
	return c.JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}
