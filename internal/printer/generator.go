package printer

import (
	"bytes"
	"fmt"

	"supplychain/internal/model"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

// DeliveryLabel is the content printed on a parcel label
type DeliveryLabel struct {
	DeliveryID      int64
	OrderID         int64
	Organization    string
	DestinationName string
	Instructions    string
	Status          string
}

// QRContent is the payload encoded in the label QR code
func (l DeliveryLabel) QRContent() string {
	return fmt.Sprintf("SCM/DLV/%012d/ORD/%012d", l.DeliveryID, l.OrderID)
}

// GenerateDeliveryLabel renders a single A6 label with a QR code
func GenerateDeliveryLabel(l DeliveryLabel) ([]byte, error) {
	// A6 is 105 x 148 mm
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: 105, Ht: 148},
	})
	pdf.SetMargins(6, 6, 6)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	qrPng, err := qrcode.Encode(l.QRContent(), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}

	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr", imgOptions, bytes.NewReader(qrPng))

	const qrSize = 60.0
	pdf.ImageOptions("qr", (105-qrSize)/2, 8, qrSize, qrSize, false, imgOptions, 0, "")

	pdf.SetXY(6, 72)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(93, 7, fmt.Sprintf("Delivery #%d", l.DeliveryID), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(93, 5, fmt.Sprintf("Order #%d", l.OrderID), "", 1, "C", false, 0, "")

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(93, 5, "Ship to", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(93, 5, l.DestinationName, "", "L", false)
	if l.Instructions != "" {
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(93, 4, l.Instructions, "", "L", false)
	}

	pdf.SetXY(6, 136)
	pdf.SetFont("Arial", "", 7)
	pdf.CellFormat(60, 4, l.Organization, "", 0, "L", false, 0, "")
	pdf.CellFormat(33, 4, l.Status, "", 0, "R", false, 0, "")

	return output(pdf)
}

// GenerateInvoice renders an invoice on A4
func GenerateInvoice(inv model.Invoice, organization string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, organization, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Order #%d  -  %s", inv.Order.ID, inv.Order.OrderDate.Format("2006-01-02")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 5, "Bill to", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, inv.Client.CompanyName, "", 1, "L", false, 0, "")
	if inv.Client.ContactPerson != "" {
		pdf.CellFormat(0, 5, inv.Client.ContactPerson, "", 1, "L", false, 0, "")
	}
	if inv.Client.Email != "" {
		pdf.CellFormat(0, 5, inv.Client.Email, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	widths := []float64{30, 50, 50, 50}
	headers := []string{"Product", "Quantity", "Unit price", "Amount"}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, it := range inv.Items {
		pdf.CellFormat(widths[0], 6, fmt.Sprintf("#%d", it.ProductID), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, it.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, it.Price.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, it.Price.Mul(it.Quantity).StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	totals := [][2]string{
		{"Subtotal", inv.Subtotal.StringFixed(2)},
		{"Discount", inv.Discount.StringFixed(2)},
		{"Total", inv.Total.StringFixed(2)},
	}
	for i, row := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Arial", "B", 11)
		}
		pdf.CellFormat(130, 6, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, row[1], "", 1, "R", false, 0, "")
	}

	return output(pdf)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
