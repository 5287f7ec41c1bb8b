package wompi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicore/clinic-portal/pkg/logging"
)

var tracer = otel.Tracer("portal.internal.wompi")

const defaultTimeout = 20 * time.Second

// Client talks to the payment vendor's public API. It backs both the
// process-wide bootstrap (merchant descriptor fetch) and the checkout
// widget (transaction creation).
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a vendor client.
func NewClient(baseURL string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// FetchMerchant loads the public merchant descriptor for a public key. This
// is the one-time vendor bootstrap; callers cache the result per process.
func (c *Client) FetchMerchant(ctx context.Context, publicKey string) (*MerchantInfo, error) {
	ctx, span := tracer.Start(ctx, "wompi.fetch_merchant")
	defer span.End()

	apiURL := c.baseURL + "/v1/merchants/" + url.PathEscape(publicKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("wompi: merchant request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wompi: merchant http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("wompi: merchant status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Data MerchantInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("wompi: merchant decode: %w", err)
	}
	if parsed.Data.PublicKey == "" {
		parsed.Data.PublicKey = publicKey
	}
	return &parsed.Data, nil
}

// createTransaction submits the signed checkout parameters to the vendor.
func (c *Client) createTransaction(ctx context.Context, params WidgetParams) (*Transaction, *WidgetError) {
	ctx, span := tracer.Start(ctx, "wompi.create_transaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("portal.reference", params.Reference),
		attribute.Int64("portal.amount_in_cents", params.AmountInCents),
	)

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, &WidgetError{Message: "invalid checkout parameters", Code: "ENCODING"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(payload))
	if err != nil {
		return nil, &WidgetError{Message: err.Error(), Code: "REQUEST"}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+params.PublicKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Context cancellation is the widget being closed, not a failure.
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, &WidgetError{Message: err.Error(), Code: "TRANSPORT"}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &WidgetError{
			Message: vendorErrorMessage(body, resp.StatusCode),
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
		}
	}

	var parsed struct {
		Data Transaction `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &WidgetError{Message: "vendor response unreadable", Code: "DECODING"}
	}
	if parsed.Data.ID == "" {
		return nil, &WidgetError{Message: "vendor response missing transaction id", Code: "MALFORMED"}
	}
	return &parsed.Data, nil
}

func vendorErrorMessage(body []byte, status int) string {
	var parsed struct {
		Error struct {
			Reason string `json:"reason"`
			Type   string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Reason != "" {
		return parsed.Error.Reason
	}
	return fmt.Sprintf("vendor rejected the checkout (status %d)", status)
}

// Widget is one vendor checkout instance. Open submits the transaction and
// delivers the outcome to the callback exactly once; Close aborts an
// in-flight open, which is reported as a user dismissal.
type Widget struct {
	client *Client
	params WidgetParams

	mu     sync.Mutex
	cancel context.CancelFunc
	opened bool
}

// NewWidget constructs a checkout widget bound to one set of signed
// parameters. Widgets are single-use.
func (c *Client) NewWidget(params WidgetParams) *Widget {
	return &Widget{client: c, params: params}
}

// Open starts the vendor checkout. The callback runs on a separate
// goroutine and is invoked exactly once.
func (w *Widget) Open(ctx context.Context, callback func(WidgetResult)) {
	w.mu.Lock()
	if w.opened {
		w.mu.Unlock()
		callback(WidgetResult{Error: &WidgetError{Message: "widget already opened", Code: "REOPENED"}})
		return
	}
	w.opened = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	go func() {
		tx, widgetErr := w.client.createTransaction(ctx, w.params)
		callback(WidgetResult{Transaction: tx, Error: widgetErr})
	}()
}

// Close aborts an in-flight open. Safe to call multiple times and before
// Open.
func (w *Widget) Close() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
