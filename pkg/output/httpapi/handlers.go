package httpapi

import (
	"github.com/ericogr/max6675-to-mqtt/pkg/sensor"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) getTemperatures(c *fiber.Ctx) error {
	readings, _ := s.snapshot()
	if readings == nil {
		readings = []sensor.Reading{}
	}
	return c.JSON(readings)
}

func (s *Server) getTemperature(c *fiber.Ctx) error {
	name := c.Params("name")
	readings, _ := s.snapshot()
	for _, r := range readings {
		if r.Name == name {
			return c.JSON(r)
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown thermocouple " + name})
}

// Health check endpoint. Status is "fault" while any thermocouple reports one.
func (s *Server) healthCheck(c *fiber.Ctx) error {
	readings, updated := s.snapshot()
	status := "ok"
	faults := 0
	for _, r := range readings {
		if r.Fault {
			faults++
		}
	}
	if faults > 0 {
		status = "fault"
	}
	body := fiber.Map{
		"status":    status,
		"readings":  len(readings),
		"faults":    faults,
		"timestamp": s.now().Unix(),
	}
	if !updated.IsZero() {
		body["updated"] = updated.Unix()
	}
	return c.JSON(body)
}
