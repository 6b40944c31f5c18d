package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kmankuan/ChiPiLink-sub010/internal/printer"
)

type DriverStatus struct {
	Name         string `json:"name"`
	Connected    bool   `json:"connected"`
	PaperProfile string `json:"paper_profile"`
}

type PrinterStatusResponse struct {
	Hardware *DriverStatus `json:"hardware,omitempty"`
	Spooler  *DriverStatus `json:"spooler"`
}

// PrinterHandler reports driver connectivity. The hardware driver is optional;
// when it is not configured the field is omitted entirely.
type PrinterHandler struct {
	hardware *printer.Hardware
	spooler  *printer.Spooler
}

func NewPrinterHandler(hardware *printer.Hardware, spooler *printer.Spooler) *PrinterHandler {
	return &PrinterHandler{hardware: hardware, spooler: spooler}
}

func (h *PrinterHandler) Status(c *gin.Context) {
	resp := PrinterStatusResponse{
		Spooler: &DriverStatus{
			Name:         h.spooler.Name(),
			Connected:    h.spooler.Connected(),
			PaperProfile: string(h.spooler.Profile()),
		},
	}

	if h.hardware != nil {
		resp.Hardware = &DriverStatus{
			Name:         h.hardware.Name(),
			Connected:    h.hardware.Connected(),
			PaperProfile: string(h.hardware.Profile()),
		}
	}

	c.JSON(http.StatusOK, resp)
}
