package protocol

import "sort"

// ApiVersionsRequest asks the server which API versions it supports.
// Version 0 carries no body.
type ApiVersionsRequest struct{}

// ParseApiVersionsRequest decodes an ApiVersions request body.
func ParseApiVersionsRequest(d *Decoder, version int16) (*ApiVersionsRequest, error) {
	if version != 0 {
		return nil, invalidf("unsupported ApiVersions version %d", version)
	}
	return &ApiVersionsRequest{}, nil
}

// APIVersion is one row of the advertised version table.
type APIVersion struct {
	APIKey     APIKey
	MinVersion int16
	MaxVersion int16
}

// ApiVersionsResponse carries the server's supported version ranges.
//
// Body layout: ErrorCode int16, then an int32-counted array of
// (APIKey int16, MinVersion int16, MaxVersion int16).
type ApiVersionsResponse struct {
	ErrorCode ErrorCode
	Versions  []APIVersion
}

// NewApiVersionsResponse builds the canonical success response from the
// server's version table, sorted by API key for a stable wire image.
func NewApiVersionsResponse() *ApiVersionsResponse {
	versions := make([]APIVersion, 0, len(SupportedVersions))
	for k, r := range SupportedVersions {
		versions = append(versions, APIVersion{APIKey: k, MinVersion: r.Min, MaxVersion: r.Max})
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].APIKey < versions[j].APIKey })
	return &ApiVersionsResponse{ErrorCode: ErrNone, Versions: versions}
}

// Encode serializes the response body.
func (r *ApiVersionsResponse) Encode() []byte {
	e := NewEncoder()
	e.Int16(int16(r.ErrorCode))
	e.Int32(int32(len(r.Versions)))
	for _, v := range r.Versions {
		e.Int16(int16(v.APIKey))
		e.Int16(v.MinVersion)
		e.Int16(v.MaxVersion)
	}
	return e.Bytes()
}

// ParseApiVersionsResponse decodes a response body. Used by tests and
// client tooling.
func ParseApiVersionsResponse(payload []byte) (*ApiVersionsResponse, error) {
	d := NewDecoder(payload)
	code, err := d.Int16()
	if err != nil {
		return nil, err
	}
	count, err := d.Int32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, invalidf("negative array length %d", count)
	}
	resp := &ApiVersionsResponse{ErrorCode: ErrorCode(code)}
	for i := int32(0); i < count; i++ {
		key, err := d.Int16()
		if err != nil {
			return nil, err
		}
		minV, err := d.Int16()
		if err != nil {
			return nil, err
		}
		maxV, err := d.Int16()
		if err != nil {
			return nil, err
		}
		resp.Versions = append(resp.Versions, APIVersion{APIKey: APIKey(key), MinVersion: minV, MaxVersion: maxV})
	}
	return resp, nil
}
