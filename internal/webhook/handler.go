// Package webhook is the ingestion boundary. It acknowledges structurally
// valid deliveries immediately and hands the pipeline work to the processor;
// business errors downstream never change the acknowledgment.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"storepulse/internal/config"
	"storepulse/internal/engine"
	"storepulse/internal/event"
	"storepulse/internal/whatsapp"
)

// Submitter enqueues pipeline jobs; saturation returns false.
type Submitter interface {
	Submit(job engine.Job) bool
}

type Handler struct {
	Config    *config.Config
	Processor Submitter
}

func NewHandler(cfg *config.Config, processor Submitter) *Handler {
	return &Handler{Config: cfg, Processor: processor}
}

// VerifyDevice answers the WhatsApp Cloud API subscription handshake.
func (h *Handler) VerifyDevice(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && token == h.Config.VerifyToken {
			log.Println("Device webhook verified successfully!")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

// HandleDeviceMessage ingests inbound WhatsApp messages and feeds them to the
// reply correlation path.
func (h *Handler) HandleDeviceMessage(c *gin.Context) {
	var payload whatsapp.InboundPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Printf("Error binding device webhook JSON: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	msg, ok := payload.FirstTextMessage()
	if !ok {
		// Status callbacks and non-text messages are acknowledged and dropped.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ev, err := event.NormalizeReply(msg.From, msg.Text.Body)
	if err != nil {
		log.Printf("Reply from %s not normalizable: %v", msg.From, err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	h.submit(engine.Job{Event: ev})
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// HandleAutomation ingests a delivery aimed at one automation via its
// generated webhook URL.
func (h *Handler) HandleAutomation(c *gin.Context) {
	automationID := c.Param("id")
	if automationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing automation id"})
		return
	}

	raw, ok := h.readPayload(c)
	if !ok {
		return
	}

	ev, err := event.Normalize(event.SourceHint{Topic: topicHeader(c)}, raw)
	if err != nil {
		// Malformed-input business errors are acknowledged so the upstream
		// platform does not retransmit; nothing is dispatched.
		log.Printf("Payload for automation %s not normalizable: %v", automationID, err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	h.submit(engine.Job{AutomationID: automationID, Event: ev})
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// HandlePlatform ingests a platform-wide delivery.
func (h *Handler) HandlePlatform(c *gin.Context) {
	platform := event.Platform(c.Param("platform"))
	if !platform.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
		return
	}

	raw, ok := h.readPayload(c)
	if !ok {
		return
	}

	ev, err := event.Normalize(event.SourceHint{Platform: platform, Topic: topicHeader(c)}, raw)
	if err != nil {
		log.Printf("Payload from %s not normalizable: %v", platform, err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	h.submit(engine.Job{Platform: platform, Event: ev})
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// readPayload reads and parses the body, enforcing the optional shared-secret
// signature. Writes the response itself on failure.
func (h *Handler) readPayload(c *gin.Context) (map[string]interface{}, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return nil, false
	}

	if h.Config.WebhookSecret != "" && !h.verifySignature(c, body) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return nil, false
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unparseable payload"})
		return nil, false
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		// Parseable but not an object (array, string, number): acknowledge so
		// the platform does not retransmit; there is nothing to process.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return nil, false
	}
	return obj, true
}

func (h *Handler) submit(job engine.Job) {
	if !h.Processor.Submit(job) {
		// The caller already got its acknowledgment; saturation only costs
		// this delivery.
		log.Printf("Pipeline saturated, delivery for %s dropped", job.Event.CorrelationKey)
	}
}

// verifySignature checks the platform's HMAC-SHA256 body signature against
// the shared secret. Shopify sends base64, WooCommerce and generic senders
// hex.
func (h *Handler) verifySignature(c *gin.Context, body []byte) bool {
	mac := hmac.New(sha256.New, []byte(h.Config.WebhookSecret))
	mac.Write(body)
	sum := mac.Sum(nil)

	if sig := c.GetHeader("X-Shopify-Hmac-Sha256"); sig != "" {
		expected, err := base64.StdEncoding.DecodeString(sig)
		return err == nil && hmac.Equal(sum, expected)
	}
	if sig := c.GetHeader("X-Webhook-Signature"); sig != "" {
		expected, err := hex.DecodeString(sig)
		return err == nil && hmac.Equal(sum, expected)
	}
	return false
}

func topicHeader(c *gin.Context) string {
	for _, h := range []string{"X-Shopify-Topic", "X-WC-Webhook-Topic", "X-Webhook-Topic"} {
		if v := c.GetHeader(h); v != "" {
			return v
		}
	}
	return ""
}
