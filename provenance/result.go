package provenance

import "fmt"

// BuildTransformResult wraps output as the verified result of a transform
// applied to input. It records name and commits into ctx, then builds and
// signs a manifest listing input as the single ingredient. The transform
// assertion carries only this call's name and commits, not what ctx has
// accumulated from earlier steps.
//
// This is the entry point for generated or hand-written transform wrappers.
func BuildTransformResult[I, O Payload](output O, input Verified[I], name string, rel Relation, commits []ParamCommit, ctx *TransformContext) (Verified[O], error) {
	return buildResult(output, []Ingredient{input}, name, rel, commits, ctx)
}

// BuildCompositeResult is BuildTransformResult for two or more inputs. Each
// input becomes an ingredient in the given order.
func BuildCompositeResult[O Payload](output O, inputs []Ingredient, name string, rel Relation, commits []ParamCommit, ctx *TransformContext) (Verified[O], error) {
	if len(inputs) < 2 {
		return Verified[O]{}, newError(KindDerivation, RuleTooFewInputs,
			fmt.Sprintf("composite %s needs at least 2 inputs, got %d", name, len(inputs)))
	}
	return buildResult(output, inputs, name, rel, commits, ctx)
}

func buildResult[O Payload](output O, inputs []Ingredient, name string, rel Relation, commits []ParamCommit, ctx *TransformContext) (Verified[O], error) {
	if ctx == nil {
		return Verified[O]{}, newError(KindSigning, RuleSignerFailed, "no transform context")
	}
	ta, ok, err := TransformAssertion(name, commits)
	if err != nil {
		if IsKind(err, KindDerivation) {
			return Verified[O]{}, err
		}
		return Verified[O]{}, wrapError(KindDerivation, RuleTransformFailed, "encode transform assertion", err)
	}
	ctx.SetTransform(name, commits)

	b := NewBuilder(output).
		Generator(ctx.Generator).
		RequireTimestamp(ctx.RequireTimestamp).
		Journal(ctx.Journal)
	for _, in := range inputs {
		b.AddIngredient(in, rel)
	}
	for _, a := range ctx.Assertions {
		b.AddAssertion(a)
	}
	if ok {
		b.AddAssertion(ta)
	}
	return b.Sign(ctx.Signer)
}
