// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package rpn

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/molecula/z2folio/config"
	"github.com/molecula/z2folio/diag"
)

// ResultSetLookup answers whether a named result set exists in the
// current session, for resolving result-set references.
type ResultSetLookup interface {
	HasResultSet(name string) bool
}

// Translator converts RPN trees to CQL under one configuration
// snapshot and one session's result-set namespace.
type Translator struct {
	cfg  *config.Config
	sets ResultSetLookup
}

// NewTranslator returns a translator bound to cfg and sets. sets may
// be nil, in which case every result-set reference fails.
func NewTranslator(cfg *config.Config, sets ResultSetLookup) *Translator {
	return &Translator{cfg: cfg, sets: sets}
}

// Translate converts the query to CQL. defaultSet is the attribute-set
// OID from the protocol search request and applies to attributes that
// do not declare their own; empty means BIB-1. The configured query
// filter, if any, is and-joined around the result.
func (t *Translator) Translate(q Node, defaultSet string) (string, error) {
	out, err := t.translate(q, defaultSet)
	if err != nil {
		return "", err
	}
	if filter := strings.TrimSpace(t.cfg.QueryFilter); filter != "" {
		return fmt.Sprintf("(%s) and (%s)", out, filter), nil
	}
	return out, nil
}

func (t *Translator) translate(q Node, defaultSet string) (string, error) {
	switch n := q.(type) {
	case Term:
		return t.translateTerm(n, defaultSet)
	case RSID:
		if t.sets == nil || !t.sets.HasResultSet(n.ID) {
			return "", diag.New(diag.IllegalResultSetName, n.ID)
		}
		return fmt.Sprintf("cql.resultSetId=%q", n.ID), nil
	case And:
		return t.translateBoolean(n.Left, n.Right, "and", defaultSet)
	case Or:
		return t.translateBoolean(n.Left, n.Right, "or", defaultSet)
	case AndNot:
		return t.translateBoolean(n.Left, n.Right, "not", defaultSet)
	default:
		return "", diag.Newf(diag.PermanentSystemError, "unknown query node %T", q)
	}
}

func (t *Translator) translateBoolean(left, right Node, op, defaultSet string) (string, error) {
	l, err := t.translate(left, defaultSet)
	if err != nil {
		return "", err
	}
	r, err := t.translate(right, defaultSet)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", l, op, r), nil
}

// relations maps BIB-1 relation attribute values to CQL relations.
var relations = map[int]string{
	1:   "<",
	2:   "<=",
	3:   "=",
	4:   ">=",
	5:   ">",
	6:   "<>",
	100: "=/phonetic",
	101: "=/stem",
	102: "=/relevant",
}

// numericTruncation rewrites "?" optionally followed by one digit
// into "*" for truncation type 104 (Z39.58 single-character masks).
var numericTruncation = regexp.MustCompile(`\?[0-9]?`)

// translateTerm applies the BIB-1 attribute semantics to one term.
// The attributes are scanned twice: the use attribute has to resolve
// to an index before the remaining modifiers can attach to it, and
// all other attributes commute.
func (t *Translator) translateTerm(n Term, defaultSet string) (string, error) {
	var index string
	haveIndex := false

	// First pass: attribute-set validation and index resolution.
	for _, attr := range n.Attrs {
		set := attr.Set
		if set == "" {
			set = defaultSet
		}
		if set != "" && set != BIB1 {
			return "", diag.New(diag.UnsupportedAttrSet, set)
		}
		if attr.Type != AttrUse {
			continue
		}
		if t.cfg.IndexMap == nil {
			index = attr.Value
			haveIndex = true
			continue
		}
		mapped, ok := t.cfg.IndexMap[attr.Value]
		if !ok {
			return "", diag.New(diag.UnsupportedUseAttr, attr.Value)
		}
		index = mapped
		haveIndex = true
	}

	term := n.Term
	relation := ""
	leftAnchor := false
	rightAnchor := false
	leftTruncation := false
	rightTruncation := false

	// Second pass: the remaining attribute types.
	for _, attr := range n.Attrs {
		switch attr.Type {
		case AttrUse:
			// resolved in the first pass

		case AttrRelation:
			v, err := strconv.Atoi(attr.Value)
			if err != nil {
				return "", diag.New(diag.UnsupportedRelation, attr.Value)
			}
			rel, ok := relations[v]
			if !ok {
				return "", diag.New(diag.UnsupportedRelation, attr.Value)
			}
			relation = rel

		case AttrPosition:
			switch attr.Value {
			case "1", "2":
				leftAnchor = true
			case "3":
				// any position in field
			default:
				return "", diag.New(diag.UnsupportedPosition, attr.Value)
			}

		case AttrStructure:
			// ignored

		case AttrTruncation:
			switch attr.Value {
			case "1":
				rightTruncation = true
			case "2":
				leftTruncation = true
			case "3":
				leftTruncation = true
				rightTruncation = true
			case "100":
				// no truncation
			case "101":
				term = strings.ReplaceAll(term, "#", "?")
			case "104":
				term = strings.ReplaceAll(term, "#", "?")
				term = numericTruncation.ReplaceAllString(term, "*")
			default:
				return "", diag.New(diag.UnsupportedTruncation, attr.Value)
			}

		case AttrCompleteness:
			switch attr.Value {
			case "1":
				// incomplete subfield
			case "2", "3":
				leftAnchor = true
				rightAnchor = true
			default:
				return "", diag.New(diag.UnsupportedComplete, attr.Value)
			}

		default:
			return "", diag.New(diag.UnsupportedAttribute, strconv.Itoa(attr.Type))
		}
	}

	if leftTruncation {
		term = "*" + term
	}
	if rightTruncation {
		term = term + "*"
	}
	if leftAnchor {
		term = "^" + term
	}
	if rightAnchor {
		term = term + "^"
	}
	if needsQuoting(term) {
		term = `"` + term + `"`
	}

	switch {
	case haveIndex:
		return assembleClause(index, relation, term), nil
	case relation != "":
		return fmt.Sprintf("cql.serverChoice %s %s", relation, term), nil
	default:
		return term, nil
	}
}

// needsQuoting reports whether the assembled term has to be surrounded
// with double quotes to survive as a single CQL term.
func needsQuoting(term string) bool {
	if strings.ContainsAny(term, `"/=`) {
		return true
	}
	return strings.IndexFunc(term, unicode.IsSpace) >= 0
}

// assembleClause renders one search clause for the resolved index
// expression. The expression may be a comma-joined list of components,
// each optionally carrying one /modifier=value suffix; multiple
// components are or-joined so the term is searched in all of them, and
// a component's modifier attaches to the relation.
func assembleClause(index, relation, term string) string {
	components := strings.Split(index, ",")
	clauses := make([]string, 0, len(components))
	for _, component := range components {
		name := component
		modifier := ""
		if i := strings.IndexByte(component, '/'); i >= 0 {
			name, modifier = component[:i], component[i:]
		}
		switch {
		case relation != "":
			clauses = append(clauses, fmt.Sprintf("%s %s %s", name, relation+modifier, term))
		case modifier != "":
			clauses = append(clauses, fmt.Sprintf("%s =%s %s", name, modifier, term))
		default:
			clauses = append(clauses, fmt.Sprintf("%s=%s", name, term))
		}
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return "(" + strings.Join(clauses, " or ") + ")"
}
