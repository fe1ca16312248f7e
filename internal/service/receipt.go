package service

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"

	"github.com/daleapp/dale-backend/internal/repository"
)

// BuildBookingReceipt renders a PDF receipt for a booking.
// Returns the document bytes and a download filename.
func BuildBookingReceipt(d *repository.BookingDetail) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BOOKING RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Booking        : %s", d.Booking.ID),
		fmt.Sprintf("Status         : %s", d.Booking.Status),
		fmt.Sprintf("Passenger      : %s", d.PassengerName),
		fmt.Sprintf("Driver         : %s", d.DriverName),
		fmt.Sprintf("Route          : %s -> %s", d.Trip.Origin, d.Trip.Destination),
		fmt.Sprintf("Departure      : %s", d.Trip.DepartureAt.Format("2006-01-02 15:04 MST")),
		fmt.Sprintf("Seats          : %d", d.Booking.SeatsBooked),
		fmt.Sprintf("Price per seat : %.2f", d.Trip.PricePerSeat),
		fmt.Sprintf("Total          : %.2f", d.Booking.TotalPrice),
		fmt.Sprintf("Booked at      : %s", d.Booking.CreatedAt.Format("2006-01-02 15:04 MST")),
	}
	for _, line := range lines {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	if d.Trip.VehicleDetails != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, "Vehicle: "+d.Trip.VehicleDetails, "", "", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("receipt: render pdf: %w", err)
	}

	filename := fmt.Sprintf("receipt_%s.pdf", d.Booking.ID)
	return buf.Bytes(), filename, nil
}
