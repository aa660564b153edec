package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// DenialKind classifies a policy denial. Denials are decisions, not
// transient faults: they are never retried and always surface to the
// caller as structured rejections.
type DenialKind string

const (
	// DenialAmbiguousOrg means no organization hint was supplied and the
	// caller's active memberships do not identify a single organization.
	DenialAmbiguousOrg DenialKind = "ambiguous_organization_context"

	// DenialNotAMember means the caller has no active, accepted membership
	// in the target organization. It deliberately also covers "organization
	// does not exist" so existence cannot be probed.
	DenialNotAMember DenialKind = "not_a_member"

	// DenialInsufficientPermission means the resolved permission set lacks
	// the required permission.
	DenialInsufficientPermission DenialKind = "insufficient_permission"

	// DenialFieldNotPermitted means a restricted role attempted to modify
	// fields outside its allowed subset.
	DenialFieldNotPermitted DenialKind = "field_not_permitted"

	// DenialAssigneeNotMember means a task was assigned to a user without
	// an active membership in the task's organization.
	DenialAssigneeNotMember DenialKind = "assignee_not_member"

	// DenialAlreadyMember means the invitation target already holds an
	// active membership.
	DenialAlreadyMember DenialKind = "already_member"

	// DenialAlreadyInvited means the invitation target already holds a
	// pending membership.
	DenialAlreadyInvited DenialKind = "already_invited"

	// DenialNotFound means a referenced entity is absent.
	DenialNotFound DenialKind = "not_found"

	// DenialCrossOrg means the resource belongs to a different organization
	// than the resolved context. Denied regardless of role.
	DenialCrossOrg DenialKind = "cross_organization_access"

	// DenialNotPermitted is the generic fallback policy denial.
	DenialNotPermitted DenialKind = "not_permitted"
)

// Denial is a structured policy rejection. It carries enough detail for
// the transport layer to pick a status code without the core knowing
// about transport concepts.
type Denial struct {
	Kind    DenialKind `json:"kind"`
	Message string     `json:"message"`
	// Fields names the offending fields for field-level denials.
	Fields []string `json:"fields,omitempty"`
}

func (d *Denial) Error() string {
	if len(d.Fields) > 0 {
		return fmt.Sprintf("%s: %s (%s)", d.Kind, d.Message, strings.Join(d.Fields, ", "))
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Deny builds a denial of the given kind.
func Deny(kind DenialKind, message string) *Denial {
	return &Denial{Kind: kind, Message: message}
}

// Denyf builds a denial with a formatted message.
func Denyf(kind DenialKind, format string, args ...interface{}) *Denial {
	return &Denial{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// DenyFields builds a field-level denial naming the offending fields.
func DenyFields(kind DenialKind, message string, fields []string) *Denial {
	return &Denial{Kind: kind, Message: message, Fields: fields}
}

// AsDenial unwraps err into a *Denial when it is (or wraps) one.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// IsDenial reports whether err is a policy denial of the given kind.
func IsDenial(err error, kind DenialKind) bool {
	d, ok := AsDenial(err)
	return ok && d.Kind == kind
}
