package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"swiftroute/internal/forecast"
)

// postForecast runs the forecast on a snapshot of the manifest, so the
// predictor call never holds the bus lock. Responses that arrive after a
// newer request has already been shown are returned but not displayed.
func (s *Server) postForecast(c *fiber.Ctx) error {
	var requestBody struct {
		BusName   string `json:"busName"`
		StopIndex int    `json:"stopIndex"`
	}
	if err := c.BodyParser(&requestBody); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_body", err.Error())
	}

	r := s.bus.Route()
	target, ok := r.Stop(requestBody.StopIndex)
	if !ok {
		return errorJSON(c, fiber.StatusUnprocessableEntity, "unknown_stop", "stop index out of range")
	}
	busName := requestBody.BusName
	if busName == "" {
		busName = s.bus.Name()
	}

	snap := s.bus.Snapshot()
	token := s.board.Begin()
	res := s.forecaster.Forecast(c.UserContext(), forecast.Request{
		BusName:  busName,
		Target:   target,
		Tickets:  snap.Tickets,
		Stops:    r.Stops(),
		Capacity: snap.Capacity,
	})

	shown := forecast.Shown{Result: res, BusName: busName, StopIndex: target.Index, At: time.Now()}
	displayed := s.board.Apply(token, shown)
	return c.JSON(fiber.Map{
		"forecast":  shown,
		"displayed": displayed,
	})
}

func (s *Server) getForecast(c *fiber.Ctx) error {
	shown, ok := s.board.Latest()
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(shown)
}
