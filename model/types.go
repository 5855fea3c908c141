package model

type ComplianceMode string

const (
	CompliancePermissive ComplianceMode = "permissive"
	ComplianceStrict     ComplianceMode = "strict"
)

// Binding is the JSON form of an asset binding. Offset and Length are only
// set for "box" bindings.
type Binding struct {
	Kind   string `json:"kind"`
	Hash   string `json:"hash"`
	Offset uint64 `json:"offset,omitempty"`
	Length uint64 `json:"length,omitempty"`
}

type Ingredient struct {
	ClaimHash string  `json:"claimHash"`
	Binding   Binding `json:"binding"`
	Relation  string  `json:"relation"`
}

// Assertion carries assertion data as base64 (encoding/json []byte rule).
type Assertion struct {
	Label    string `json:"label"`
	MimeType string `json:"mimeType,omitempty"`
	Data     []byte `json:"data"`
}

// Manifest is one signing event as recorded by the ledger.
type Manifest struct {
	ManifestID       string       `json:"manifestID"`
	ClaimHash        string       `json:"claimHash"`
	Generator        string       `json:"generator"`
	Binding          Binding      `json:"binding"`
	Ingredients      []Ingredient `json:"ingredients"`
	Assertions       []Assertion  `json:"assertions"`
	MediaType        string       `json:"mediaType"`
	PayloadCID       string       `json:"payloadCID,omitempty"`
	Signature        []byte       `json:"signature"`
	CertificateChain [][]byte     `json:"certificateChain,omitempty"`
	Timestamp        []byte       `json:"timestamp,omitempty"`
}

type LineageRequest struct {
	ClaimHash  string         `json:"claimHash"`
	Compliance ComplianceMode `json:"compliance"`
}

type Edge struct {
	ClaimHash string `json:"claimHash"`
	Relation  string `json:"relation"`
}

// LineageNode is one record reached by a lineage walk. Depth is the
// shortest distance from the subject.
type LineageNode struct {
	ClaimHash  string `json:"claimHash"`
	ManifestID string `json:"manifestID"`
	Generator  string `json:"generator"`
	Transform  string `json:"transform,omitempty"`
	Depth      int    `json:"depth"`
	Parents    []Edge `json:"parents"`
}

type Lineage struct {
	Subject    string         `json:"subject"`
	Compliance ComplianceMode `json:"compliance"`
	Nodes      []LineageNode  `json:"nodes"`
	Roots      []string       `json:"roots"`
	Missing    []string       `json:"missing"`
}

// AuditReport is the result of re-checking a recorded manifest.
type AuditReport struct {
	ClaimHash        string   `json:"claimHash"`
	ClaimOK          bool     `json:"claimOK"`
	PayloadChecked   bool     `json:"payloadChecked"`
	PayloadOK        bool     `json:"payloadOK"`
	SignatureChecked bool     `json:"signatureChecked"`
	SignatureOK      bool     `json:"signatureOK"`
	Problems         []string `json:"problems"`
}

// OK reports whether every check that ran passed.
func (r AuditReport) OK() bool {
	return r.ClaimOK &&
		(!r.PayloadChecked || r.PayloadOK) &&
		(!r.SignatureChecked || r.SignatureOK)
}
