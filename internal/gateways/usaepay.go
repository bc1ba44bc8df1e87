package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

const usaepayName = "usaepay"

// USAEpayAdapter talks SOAP 1.2. The envelope is built and parsed with
// etree; fasthttp has no SOAP affordances, so this adapter uses
// net/http with the same bounded timeout the REST adapters get.
type USAEpayAdapter struct {
	url       string
	sourceKey string
	pin       string
	client    *http.Client
}

func NewUSAEpayAdapter(url, sourceKey, pin string, timeout time.Duration) *USAEpayAdapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &USAEpayAdapter{
		url:       url,
		sourceKey: sourceKey,
		pin:       pin,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (a *USAEpayAdapter) Name() string { return usaepayName }

func (a *USAEpayAdapter) envelope(action string, fill func(body *etree.Element)) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	env := doc.CreateElement("soap12:Envelope")
	env.CreateAttr("xmlns:soap12", "http://www.w3.org/2003/05/soap-envelope")
	env.CreateAttr("xmlns:ns1", "urn:usaepay")

	body := env.CreateElement("soap12:Body")
	op := body.CreateElement("ns1:" + action)

	token := op.CreateElement("Token")
	token.CreateElement("SourceKey").SetText(a.sourceKey)
	token.CreateElement("Pin").SetText(a.pin)

	fill(op)
	return doc
}

func (a *USAEpayAdapter) call(ctx context.Context, action string, doc *etree.Document) (*etree.Document, string, error) {
	payload, err := doc.WriteToString()
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewBufferString(payload))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "urn:usaepay#"+action)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	out := etree.NewDocument()
	if err := out.ReadFromBytes(body); err != nil {
		return nil, "", fmt.Errorf("failed to parse XML: %w", err)
	}
	return out, string(body), nil
}

func (a *USAEpayAdapter) CreatePaymentProfile(ctx context.Context, d ProfileDetails) (string, error) {
	doc := a.envelope("addCustomerPaymentMethod", func(op *etree.Element) {
		pm := op.CreateElement("PaymentMethod")
		pm.CreateElement("CardNumber").SetText(d.CardNumber)
		pm.CreateElement("CardExpiration").SetText(d.ExpMonth + d.ExpYear)
		pm.CreateElement("CardCode").SetText(d.CVV)
		pm.CreateElement("AccountHolderName").SetText(d.HolderName)
		if d.Method == "ach" {
			pm.CreateElement("Routing").SetText(d.RoutingNumber)
			pm.CreateElement("Account").SetText(d.AccountNumber)
		}
	})

	out, raw, err := a.call(ctx, "addCustomerPaymentMethod", doc)
	if err != nil {
		return "", err
	}

	ref := out.FindElement("//addCustomerPaymentMethodReturn")
	if ref == nil || ref.Text() == "" {
		return "", fmt.Errorf("no payment method id in response: %s", raw)
	}
	return ref.Text(), nil
}

func (a *USAEpayAdapter) Charge(ctx context.Context, amount decimal.Decimal, profileRef string) (*ChargeResult, error) {
	doc := a.envelope("runCustomerTransaction", func(op *etree.Element) {
		op.CreateElement("MethodID").SetText(profileRef)
		params := op.CreateElement("Parameters")
		params.CreateElement("Command").SetText("Sale")
		details := params.CreateElement("Details")
		details.CreateElement("Amount").SetText(amount.StringFixed(2))
	})

	out, raw, err := a.call(ctx, "runCustomerTransaction", doc)
	if err != nil {
		return nil, err
	}

	result := out.FindElement("//runCustomerTransactionReturn")
	if result == nil {
		return nil, fmt.Errorf("no transaction result in response: %s", raw)
	}

	status := elementText(result, "ResultCode")
	refNum := elementText(result, "RefNum")

	// USAEpay result codes: A approved, D declined, E error.
	if status != "A" {
		return nil, &DeclineError{
			Code:    elementText(result, "ErrorCode"),
			Message: elementText(result, "Error"),
			Raw:     raw,
		}
	}

	return &ChargeResult{
		ExternalID: refNum,
		StatusCode: status,
		Raw:        raw,
	}, nil
}

func elementText(parent *etree.Element, name string) string {
	if el := parent.FindElement("./" + name); el != nil {
		return el.Text()
	}
	return ""
}
