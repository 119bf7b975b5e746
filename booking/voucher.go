package booking

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"mahatour/apperr"
	"mahatour/middleware"
	"mahatour/models"
	"mahatour/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// Vouchers signs and checks the payload printed as a QR code on booking
// vouchers: bookingID|userID|startDate|signature.
type Vouchers struct {
	secret []byte
}

func NewVouchers(secret string) *Vouchers {
	return &Vouchers{secret: []byte(secret)}
}

func (v *Vouchers) sign(data string) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (v *Vouchers) Payload(b *models.Booking) string {
	data := fmt.Sprintf("%s|%s|%s", b.ID, b.UserID, b.StartDate)
	return data + "|" + v.sign(data)
}

// Verify returns the booking id carried by a genuine payload.
func (v *Vouchers) Verify(payload string) (string, error) {
	i := strings.LastIndexByte(payload, '|')
	if i < 0 {
		return "", apperr.Validation("Malformed voucher")
	}
	data, sig := payload[:i], payload[i+1:]
	if !hmac.Equal([]byte(sig), []byte(v.sign(data))) {
		return "", apperr.Validation("Voucher signature does not match")
	}
	parts := strings.Split(data, "|")
	if len(parts) != 3 || parts[0] == "" {
		return "", apperr.Validation("Malformed voucher")
	}
	return parts[0], nil
}

// Render builds the PDF voucher for b.
func (v *Vouchers) Render(b *models.Booking, holder string, place string) ([]byte, error) {
	qrPNG, err := qrcode.Encode(v.Payload(b), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking voucher "+b.ID, true)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, "Maharashtra Tour Guide")
	pdf.Ln(10)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, "Booking voucher")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 12)
	lines := []string{
		"Booking: " + b.ID,
		"Guest: " + holder,
		"Type: " + b.Kind,
	}
	if place != "" {
		lines = append(lines, "Place: "+place)
	}
	lines = append(lines,
		fmt.Sprintf("Dates: %s to %s", b.StartDate, b.EndDate),
		fmt.Sprintf("Guests: %d", b.Guests),
		"Status: "+string(b.Status),
	)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, l := range lines {
		pdf.Cell(0, 8, tr(l))
		pdf.Ln(8)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 40, 45, 45, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// PrintVoucher streams the PDF voucher of a confirmed booking to its owner.
func (h *Handler) PrintVoucher(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	b, err := h.visible(ctx, ps.ByName("id"))
	if err == nil && b.UserID != middleware.UserID(ctx) {
		err = apperr.NotFound("Booking not found")
	}
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	if b.Status != models.BookingConfirmed {
		utils.RespondWithAppError(w, h.log, apperr.Conflict("Only confirmed bookings have a voucher"))
		return
	}

	holder := b.UserID
	if u, err := h.users.Get(ctx, b.UserID); err == nil && u.FullName != "" {
		holder = u.FullName
	}
	var place string
	if b.PlaceID != "" {
		if p, err := h.places.Get(ctx, b.PlaceID); err == nil {
			place = p.Name
		}
	}

	doc, err := h.vouchers.Render(b, holder, place)
	if err != nil {
		h.log.Error("rendering voucher failed", zap.String("booking", b.ID), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate voucher")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=voucher-"+b.ID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

type verifyInput struct {
	Payload string `json:"payload" validate:"required"`
}

// VerifyVoucher checks a scanned QR payload and returns the booking it
// belongs to. Guides use it at the meeting point.
func (h *Handler) VerifyVoucher(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in verifyInput
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	id, err := h.vouchers.Verify(in.Payload)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	b, err := h.bookings.Get(r.Context(), id)
	if err != nil {
		utils.RespondWithAppError(w, h.log, notFoundAs(err, "Booking not found"))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"valid":   b.Status == models.BookingConfirmed,
		"booking": b,
	})
}
