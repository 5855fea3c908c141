package provenance

// TransformContext is the metadata one pipeline run threads through its
// transforms. Generator, RequireTimestamp, Assertions, Signer, and Journal
// persist for the whole run; TransformName and ParamCommits describe the
// transform currently being recorded.
//
// A TransformContext is owned by one execution unit and is not safe for
// concurrent use.
type TransformContext struct {
	Generator        string
	RequireTimestamp bool
	Assertions       []CustomAssertion
	TransformName    string
	ParamCommits     []ParamCommit

	Signer  Signer
	Journal Journal
}

// NewTransformContext returns a context signing with signer under generator.
// An empty generator selects DefaultGenerator.
func NewTransformContext(generator string, signer Signer) *TransformContext {
	if generator == "" {
		generator = DefaultGenerator
	}
	return &TransformContext{Generator: generator, Signer: signer}
}

// WithTimestamp requires every build in this context to be timestamped.
func (c *TransformContext) WithTimestamp() *TransformContext {
	c.RequireTimestamp = true
	return c
}

// AddAssertion attaches a to every manifest built in this context.
func (c *TransformContext) AddAssertion(a CustomAssertion) *TransformContext {
	c.Assertions = append(c.Assertions, a)
	return c
}

// SetTransform replaces the transform name and appends commits.
func (c *TransformContext) SetTransform(name string, commits []ParamCommit) {
	c.TransformName = name
	c.ParamCommits = append(c.ParamCommits, commits...)
}

// ClearTransformMetadata resets the transform name and commits between
// steps. Generator and run-level settings are kept.
func (c *TransformContext) ClearTransformMetadata() {
	c.TransformName = ""
	c.ParamCommits = nil
}
