package alerting

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const defaultWebhookTimeout = 10 * time.Second

var (
	// ErrWebhookURLRejected is returned for URLs that are not absolute http(s) URLs.
	ErrWebhookURLRejected = errors.New("webhook url must be an absolute http or https url")

	// ErrWebhookDelivery hides transport details from tenants. The cause is logged.
	ErrWebhookDelivery = errors.New("webhook delivery failed")

	errBlockedDestination = errors.New("destination address is not public")
)

// cgnatBlock is the shared address space of RFC 6598, not covered by net.IP.IsPrivate.
var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// WebhookSender posts JSON payloads to tenant endpoints.
type WebhookSender struct {
	secret       string
	timeout      time.Duration
	allowPrivate bool
	httpClient   *http.Client
}

// NewWebhookSender creates a sender that only connects to public addresses.
// When secret is set every request carries an X-Webhook-Signature
// HMAC-SHA256 of the body.
func NewWebhookSender(secret string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	w := &WebhookSender{secret: secret, timeout: timeout}
	w.httpClient = w.newClient()
	return w
}

// AllowPrivateNetworks lifts the public address restriction, for local setups.
func (w *WebhookSender) AllowPrivateNetworks() *WebhookSender {
	w.allowPrivate = true
	w.httpClient = w.newClient()
	return w
}

func (w *WebhookSender) newClient() *http.Client {
	dialer := &net.Dialer{Timeout: w.timeout, KeepAlive: 30 * time.Second}
	if !w.allowPrivate {
		dialer.Control = guardDestination
	}
	return &http.Client{
		Timeout: w.timeout,
		Transport: &http.Transport{
			// no proxy: the guard must see the real destination
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: w.timeout,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return errors.New("too many redirects")
			}
			return checkWebhookURL(req.URL)
		},
	}
}

// guardDestination runs after DNS resolution, so rebinding cannot sneak past it.
func guardDestination(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || isNonPublicIP(ip) {
		return fmt.Errorf("%w: %s", errBlockedDestination, host)
	}
	return nil
}

func isNonPublicIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified() ||
		cgnatBlock.Contains(ip)
}

func checkWebhookURL(u *url.URL) error {
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrWebhookURLRejected
	}
	return nil
}

// Send posts payload to rawURL. Non-2xx responses are errors. Transport
// failures, including refused destinations, come back as ErrWebhookDelivery.
func (w *WebhookSender) Send(ctx context.Context, rawURL string, payload interface{}) error {
	target, err := url.Parse(rawURL)
	if err != nil {
		return ErrWebhookURLRejected
	}
	if err := checkWebhookURL(target); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return ErrWebhookURLRejected
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "InvoiceFox-Alerts/1.0")
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	if w.secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(body, w.secret))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		log.Warnf("[Alerts] Webhook POST to %s failed: %v", target.Host, err)
		return ErrWebhookDelivery
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex encoded HMAC-SHA256 of payload.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
