package domain

type OwnerKind string

const (
	OwnerKindSession OwnerKind = "session"
	OwnerKindUser    OwnerKind = "user"
)

// Owner identifies who holds a reservation: an anonymous session or an
// authenticated user, never both.
type Owner struct {
	Kind OwnerKind
	Ref  string
}

func SessionOwner(sessionID string) Owner {
	return Owner{Kind: OwnerKindSession, Ref: sessionID}
}

func UserOwner(userID string) Owner {
	return Owner{Kind: OwnerKindUser, Ref: userID}
}

// Validate checks that exactly one owner identity is set.
func (o Owner) Validate() error {
	if o.Ref == "" {
		return ErrInvalidOwner
	}
	switch o.Kind {
	case OwnerKindSession, OwnerKindUser:
		return nil
	}
	return ErrInvalidOwner
}
