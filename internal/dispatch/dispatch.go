// Package dispatch implements the Payload Dispatcher: the quoted-JSON
// unwrap, the three-way JSON classification, the optional validation
// policy, and the fetch trigger for coinImageUpdated subjects. Grounded
// on original_source/src/main.rs's print_parsed_line and
// original_source/src/smart_fetcher.rs's ValidateConfig block.
package dispatch

import (
	"encoding/json"
	"strings"

	"pumpsubscriber/internal/config"
	"pumpsubscriber/internal/ipfs"
	"pumpsubscriber/internal/logging"
	"pumpsubscriber/internal/metrics"
)

const payloadPreviewLen = 200

// ImageUpdateHandler is invoked once per coinImageUpdated message whose
// body yielded a usable CID.
type ImageUpdateHandler func(subject, mint, cid string)

// Dispatcher turns delivered message bodies into structured log records
// and, for image-update subjects, triggers fetches.
type Dispatcher struct {
	printer      *logging.Printer
	metrics      *metrics.Metrics
	policy       config.ValidateConfig
	fetchEnabled bool
	onImage      ImageUpdateHandler
}

// New builds a Dispatcher. onImage may be nil if the fetch engine is
// disabled.
func New(printer *logging.Printer, m *metrics.Metrics, policy config.ValidateConfig, fetchEnabled bool, onImage ImageUpdateHandler) *Dispatcher {
	return &Dispatcher{
		printer:      printer,
		metrics:      m,
		policy:       policy,
		fetchEnabled: fetchEnabled,
		onImage:      onImage,
	}
}

// Handle processes one delivered message body for the given subject.
func (d *Dispatcher) Handle(subject string, body []byte) {
	text := unwrapQuoted(body)

	isImageUpdate := strings.HasPrefix(subject, "coinImageUpdated")

	var payload interface{}
	if err := json.Unmarshal(text, &payload); err != nil {
		d.printer.Log(
			logging.F("event", "message"),
			logging.F("subject", subject),
			logging.F("error", err.Error()),
			logging.F("payload_preview", preview(text)),
		)
		d.metrics.MessageDispatched("parse_error")
		if isImageUpdate && d.fetchEnabled {
			d.skip(subject, "json_parse_error", map[string]interface{}{"error": err.Error()})
		}
		return
	}

	obj, isObject := payload.(map[string]interface{})
	if !isObject {
		d.printer.Log(
			logging.F("event", "message"),
			logging.F("subject", subject),
			logging.F("non_object", true),
		)
		d.metrics.MessageDispatched("non_object")
		if isImageUpdate && d.fetchEnabled {
			d.skip(subject, "json_not_object", nil)
		}
		return
	}

	mint := obj["mint"]
	image := obj["image"]
	d.printer.Log(
		logging.F("event", "message"),
		logging.F("subject", subject),
		logging.F("mint", mint),
		logging.F("image", image),
	)
	d.metrics.MessageDispatched("object")

	d.validate(subject, obj)

	if !isImageUpdate || !d.fetchEnabled {
		return
	}

	mintStr, _ := mint.(string)
	imageStr, _ := image.(string)
	if imageStr == "" {
		d.skip(subject, "no_image", map[string]interface{}{"mint": mintStr})
		return
	}
	cid, ok := ipfs.ExtractCID(imageStr)
	if !ok {
		d.skip(subject, "no_cid", map[string]interface{}{
			"mint":          mintStr,
			"image_preview": preview([]byte(imageStr)),
		})
		return
	}
	if d.onImage != nil {
		d.onImage(subject, mintStr, cid)
	}
}

// skip emits the smart_ipfs_skip record for an image-update message the
// fetch engine will never be invoked for (SPEC_FULL.md §12). extra carries
// reason-specific diagnostic fields (mint, image_preview, error) matching
// original_source/src/smart_fetcher.rs's try_spawn_smart_ipfs_fetch.
func (d *Dispatcher) skip(subject, reason string, extra map[string]interface{}) {
	fields := []logging.Field{
		logging.F("event", "smart_ipfs_skip"),
		logging.F("subject", subject),
		logging.F("reason", reason),
	}
	for k, v := range extra {
		fields = append(fields, logging.F(k, v))
	}
	d.printer.Log(fields...)
}

// ValidateInfoKeys implements the require_info_keys check against the
// broker's first INFO payload (spec.md §4.4.1). Wired as the Session's
// onInfo hook.
func (d *Dispatcher) ValidateInfoKeys(raw []byte) {
	if !d.policy.Enabled || len(d.policy.RequireInfoKeys) == 0 {
		return
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}
	for _, key := range d.policy.RequireInfoKeys {
		if _, ok := m[key]; !ok {
			d.logValidationError("info_key_missing", map[string]interface{}{"key": key})
		}
	}
}

func (d *Dispatcher) validate(subject string, obj map[string]interface{}) {
	if !d.policy.Enabled {
		return
	}

	if len(d.policy.AllowedSubjectPrefixes) > 0 {
		allowed := false
		for _, p := range d.policy.AllowedSubjectPrefixes {
			if strings.HasPrefix(subject, p) {
				allowed = true
				break
			}
		}
		if !allowed {
			d.logValidationError("subject_disallowed", map[string]interface{}{"subject": subject})
		}
	}

	if d.policy.RequireMint && !isNonEmptyString(obj["mint"]) {
		d.logValidationError("missing_mint", map[string]interface{}{"subject": subject})
	}
	if d.policy.RequireImage && !isNonEmptyString(obj["image"]) {
		d.logValidationError("missing_image", map[string]interface{}{"subject": subject})
	}
}

func (d *Dispatcher) logValidationError(reason string, extra map[string]interface{}) {
	fields := []logging.Field{
		logging.F("event", "validation_error"),
		logging.F("reason", reason),
	}
	for k, v := range extra {
		fields = append(fields, logging.F(k, v))
	}
	d.printer.Log(fields...)
	d.metrics.ValidationError(reason)
}

func isNonEmptyString(v interface{}) bool {
	s, ok := v.(string)
	return ok && s != ""
}

// unwrapQuoted decodes a top-level JSON string literal once, if the body
// looks like one (first and last byte are '"'). Best-effort compatibility
// shim for a broker that occasionally double-encodes payloads — see
// DESIGN.md's Open Question decisions.
func unwrapQuoted(body []byte) []byte {
	if len(body) < 2 || body[0] != '"' || body[len(body)-1] != '"' {
		return body
	}
	var s string
	if err := json.Unmarshal(body, &s); err != nil {
		return body
	}
	return []byte(s)
}

// preview returns the first 200 characters (not bytes) of text, matching
// original_source's text.chars().take(200).collect() — slicing on bytes
// would cut a multi-byte UTF-8 rune in half.
func preview(text []byte) string {
	r := []rune(string(text))
	if len(r) > payloadPreviewLen {
		return string(r[:payloadPreviewLen])
	}
	return string(r)
}
