package documents

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/hexaforge/agency-office/internal/money"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validateStruct runs tag validation and converts failures into *ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields[fieldPath(fe.Namespace())] = describe(fe)
	}
	return verr
}

// fieldPath strips the root struct and embedded struct names,
// e.g. "QuotationDraft.CommercialInput.client.client_name" -> "client.client_name".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.TrimPrefix(ns, "CommercialInput.")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must not be less than " + fe.Param()
	case "lte":
		return "must not be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "failed " + fe.Tag() + " check"
}

// buildCommercial validates the shared form fields and derives amounts.
// Item amounts are computed once here and stored; totals always sum stored amounts.
func buildCommercial(in CommercialInput) (Header, error) {
	items := make([]LineItem, 0, len(in.Items))
	for i, it := range in.Items {
		amount, err := money.LineAmount(it.Quantity, it.UnitPrice)
		if err != nil {
			return Header{}, newValidationError("items["+strconv.Itoa(i)+"]", err.Error())
		}
		items = append(items, LineItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      amount,
		})
	}
	totals, err := money.ComputeTotals(items, in.TaxRate, in.DiscountAmount)
	if err != nil {
		field := "discount_amount"
		if errors.Is(err, money.ErrNegativeTaxRate) {
			field = "tax_rate"
		}
		return Header{}, newValidationError(field, err.Error())
	}
	client := Client{
		ID:      in.Client.ID,
		Name:    strings.TrimSpace(in.Client.Name),
		Email:   strings.TrimSpace(in.Client.Email),
		Phone:   strings.TrimSpace(in.Client.Phone),
		Address: strings.TrimSpace(in.Client.Address),
		Company: strings.TrimSpace(in.Client.Company),
	}
	if client.Name == "" {
		return Header{}, newValidationError("client.client_name", "is required")
	}
	return Header{
		Client:         client,
		Items:          items,
		Subtotal:       totals.Subtotal,
		TaxRate:        in.TaxRate,
		TaxAmount:      totals.TaxAmount,
		DiscountAmount: money.Round(in.DiscountAmount),
		Total:          totals.Total,
		Notes:          in.Notes,
		Terms:          in.Terms,
	}, nil
}

func validateDates(field string, issue time.Time, until *time.Time) error {
	if until != nil && until.Before(issue) {
		return newValidationError(field, "must not be before issue_date")
	}
	return nil
}
