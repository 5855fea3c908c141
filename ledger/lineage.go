package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"xdao.co/provchain/compliance"
	"xdao.co/provchain/model"
	"xdao.co/provchain/provenance"
)

// Lineage walks from h back to its roots, breadth first. Parents are
// visited in ingredient order and each record appears once, at its
// shortest depth, so the result is deterministic for a given ledger.
//
// The subject itself must be recorded. A missing ancestor fails the walk
// with ErrMissingAncestor in Strict mode and is listed in Missing in
// Permissive mode.
func (l *Ledger) Lineage(ctx context.Context, h provenance.ClaimHash, mode compliance.ComplianceMode) (model.Lineage, error) {
	out := model.Lineage{
		Subject:    h.String(),
		Compliance: model.FromCompliance(mode),
		Nodes:      []model.LineageNode{},
		Roots:      []string{},
		Missing:    []string{},
	}

	type item struct {
		hash  provenance.ClaimHash
		depth int
	}
	seen := map[provenance.ClaimHash]bool{h: true}
	queue := []item{{h, 0}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return model.Lineage{}, err
		}
		cur := queue[0]
		queue = queue[1:]

		s, err := l.load(ctx, cur.hash)
		if errors.Is(err, ErrNotFound) && cur.depth > 0 {
			if mode == compliance.Strict {
				return model.Lineage{}, fmt.Errorf("%w: %s", ErrMissingAncestor, cur.hash)
			}
			out.Missing = append(out.Missing, cur.hash.String())
			continue
		}
		if err != nil {
			return model.Lineage{}, err
		}

		claim := s.entry.Claim
		node := model.LineageNode{
			ClaimHash:  cur.hash.String(),
			ManifestID: s.entry.ManifestID,
			Generator:  claim.Generator,
			Transform:  transformName(claim.Assertions),
			Depth:      cur.depth,
			Parents:    make([]model.Edge, 0, len(claim.Ingredients)),
		}
		for _, ing := range claim.Ingredients {
			node.Parents = append(node.Parents, model.Edge{ClaimHash: ing.ClaimHash.String(), Relation: ing.Relation.String()})
			if !seen[ing.ClaimHash] {
				seen[ing.ClaimHash] = true
				queue = append(queue, item{ing.ClaimHash, cur.depth + 1})
			}
		}
		if len(claim.Ingredients) == 0 {
			out.Roots = append(out.Roots, node.ClaimHash)
		}
		out.Nodes = append(out.Nodes, node)
	}

	l.logger.DebugContext(ctx, "lineage walked",
		"subject", h.Short(),
		"nodes", len(out.Nodes),
		"missing", len(out.Missing),
	)
	return out, nil
}

// transformName extracts the transform name from a claim's transform
// assertion, or "" if there is none.
func transformName(assertions []provenance.CustomAssertion) string {
	for _, a := range assertions {
		if a.Label != provenance.TransformAssertionLabel {
			continue
		}
		var body struct {
			Transform string `json:"transform"`
		}
		if err := json.Unmarshal(a.Data, &body); err == nil {
			return body.Transform
		}
	}
	return ""
}
