package protocol

// RequestHeader is the envelope prefix carried by every StreamBus request.
//
// Layout: APIKey int16, APIVersion int16, CorrelationID int32,
// ClientID nullable string.
type RequestHeader struct {
	APIKey        APIKey
	APIVersion    int16
	CorrelationID int32
	ClientID      string
}

// ParseRequestHeader decodes a request header from the front of a frame
// payload and returns the header together with a decoder positioned at the
// request body.
//
// An unknown API key fails with ErrInvalidRequest: the bytes may equally well
// be a raw mechanism token, so the caller decides whether legacy fallback
// applies.
func ParseRequestHeader(payload []byte) (*RequestHeader, *Decoder, error) {
	d := NewDecoder(payload)

	apiKey, err := d.Int16()
	if err != nil {
		return nil, nil, err
	}
	apiVersion, err := d.Int16()
	if err != nil {
		return nil, nil, err
	}
	correlationID, err := d.Int32()
	if err != nil {
		return nil, nil, err
	}
	clientID, err := d.NullableString()
	if err != nil {
		return nil, nil, err
	}

	h := &RequestHeader{
		APIKey:        APIKey(apiKey),
		APIVersion:    apiVersion,
		CorrelationID: correlationID,
	}
	if clientID != nil {
		h.ClientID = *clientID
	}
	if !h.APIKey.Valid() {
		return nil, nil, invalidf("unknown api key %d", apiKey)
	}
	return h, d, nil
}

// EncodeRequestHeader serializes a request header. Used by tests and by
// client-side tooling; the server only parses headers.
func EncodeRequestHeader(e *Encoder, h *RequestHeader) {
	e.Int16(int16(h.APIKey))
	e.Int16(h.APIVersion)
	e.Int32(h.CorrelationID)
	if h.ClientID == "" {
		e.Int16(-1)
	} else {
		e.String(h.ClientID)
	}
}

// EncodeResponse builds a complete response payload for the given request:
// the response header (correlation id echoed back) followed by the body.
func EncodeResponse(h *RequestHeader, body []byte) []byte {
	e := NewEncoder()
	e.Int32(h.CorrelationID)
	e.buf = append(e.buf, body...)
	return e.Bytes()
}
