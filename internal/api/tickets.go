package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"swiftroute/internal/sim"
	"swiftroute/internal/ticket"
)

func (s *Server) listTickets(c *fiber.Ctx) error {
	snap := s.bus.Snapshot()
	return c.JSON(fiber.Map{
		"tickets":          snap.Tickets,
		"onboard":          snap.Onboard,
		"capacity":         snap.Capacity,
		"seatsLeft":        snap.SeatsLeft,
		"currentStopIndex": snap.CurrentStopIndex,
	})
}

func (s *Server) issueTicket(c *fiber.Ctx) error {
	var requestBody struct {
		BoardingIndex    int `json:"boardingIndex"`
		DestinationIndex int `json:"destinationIndex"`
		PassengerCount   int `json:"passengerCount"`
	}
	if err := c.BodyParser(&requestBody); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_body", err.Error())
	}

	t, err := s.bus.IssueTicket(c.UserContext(), ticket.IssueRequest{
		BusName:          sessionFrom(c).BusName,
		BoardingIndex:    requestBody.BoardingIndex,
		DestinationIndex: requestBody.DestinationIndex,
		PassengerCount:   requestBody.PassengerCount,
	})
	if err != nil {
		status := fiber.StatusUnprocessableEntity
		if errors.Is(err, ticket.ErrCapacityExceeded) {
			status = fiber.StatusConflict
		}
		return errorJSON(c, status, sim.RejectReason(err), err.Error())
	}

	c.Status(fiber.StatusCreated)
	return c.JSON(t)
}

func (s *Server) removeTicket(c *fiber.Ctx) error {
	s.bus.RemoveTicket(c.UserContext(), c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}
