package domain

// The certificate carries two independent state variables: the coverage
// approval lifecycle and the hold-harmless signature lifecycle. They are
// modeled as two separate machines composed by reference on the record; the
// single cross-machine write is the approval edge firing hold-harmless
// generation, and that happens in the certificates service, never here.

// Role is the acting party for a transition, supplied by the identity
// collaborator and passed explicitly into every state-machine call.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleBroker            Role = "broker"
	RoleSubcontractor     Role = "subcontractor"
	RoleGeneralContractor Role = "general_contractor"
	RoleSystem            Role = "system"
)

// ParseRole validates an externally supplied role string.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleBroker, RoleSubcontractor, RoleGeneralContractor, RoleSystem:
		return Role(s), true
	}
	return "", false
}

// CertificateStatus is the coverage-approval lifecycle state.
type CertificateStatus string

const (
	StatusAwaitingBrokerUpload CertificateStatus = "awaiting_broker_upload"
	StatusUnderAdminReview     CertificateStatus = "under_admin_review"
	StatusDeficiencyPending    CertificateStatus = "deficiency_pending"
	StatusApproved             CertificateStatus = "approved"
)

// HoldHarmlessStatus is the hold-harmless signature lifecycle state.
type HoldHarmlessStatus string

const (
	HHNone               HoldHarmlessStatus = "none"
	HHGenerationFailed   HoldHarmlessStatus = "generation_failed"
	HHPendingSignature   HoldHarmlessStatus = "pending_signature"
	HHSignedBySub        HoldHarmlessStatus = "signed_by_subcontractor"
	HHPendingGCSignature HoldHarmlessStatus = "pending_gc_signature"
	HHSigned             HoldHarmlessStatus = "signed"
)

// Machine is an adjacency table with per-edge authorized roles.
type Machine[S ~string] struct {
	Name  string
	Edges map[S]map[S][]Role
}

// Step checks the edge current -> target for the acting role. It returns
// nil when the edge is available, WrongStateError when the target exists in
// the machine but not from current, InvalidTransitionError when the target
// is not a destination of any edge, and UnauthorizedActorError on a role
// mismatch.
func (m Machine[S]) Step(current, target S, role Role) error {
	roles, ok := m.Edges[current][target]
	if ok {
		for _, r := range roles {
			if r == role {
				return nil
			}
		}
		return &UnauthorizedActorError{Role: role, Machine: m.Name, Attempted: string(target)}
	}
	for _, targets := range m.Edges {
		if _, exists := targets[target]; exists {
			return &WrongStateError{Machine: m.Name, Current: string(current), Attempted: string(target)}
		}
	}
	return &InvalidTransitionError{Machine: m.Name, Current: string(current), Attempted: string(target)}
}

// CertificateMachine: broker upload moves the record into review,
// review either approves or parks it in deficiency_pending, a resubmission
// re-enters review, and the only way back out of approved is an explicit
// admin re-review.
var CertificateMachine = Machine[CertificateStatus]{
	Name: "certificate",
	Edges: map[CertificateStatus]map[CertificateStatus][]Role{
		StatusAwaitingBrokerUpload: {
			StatusUnderAdminReview: {RoleBroker, RoleAdmin},
		},
		StatusUnderAdminReview: {
			StatusDeficiencyPending: {RoleAdmin},
			StatusApproved:          {RoleAdmin},
		},
		StatusDeficiencyPending: {
			StatusUnderAdminReview: {RoleBroker, RoleAdmin},
		},
		StatusApproved: {
			StatusUnderAdminReview: {RoleAdmin},
		},
	},
}

// HoldHarmlessMachine: the system generates the template on approval, the
// subcontractor signs, the general contractor countersigns. signed is
// terminal. generation_failed is the visible compensating state when
// template rendering exhausted its retries.
var HoldHarmlessMachine = Machine[HoldHarmlessStatus]{
	Name: "hold_harmless",
	Edges: map[HoldHarmlessStatus]map[HoldHarmlessStatus][]Role{
		HHNone: {
			HHPendingSignature: {RoleSystem},
			HHGenerationFailed: {RoleSystem},
		},
		HHGenerationFailed: {
			HHPendingSignature: {RoleSystem, RoleAdmin},
		},
		HHPendingSignature: {
			HHSignedBySub: {RoleSubcontractor},
		},
		HHSignedBySub: {
			HHPendingGCSignature: {RoleSystem},
			HHSigned:             {RoleGeneralContractor},
		},
		HHPendingGCSignature: {
			HHSigned: {RoleGeneralContractor},
		},
	},
}
