package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

// PrincipalKind distinguishes the three authentication levels.
type PrincipalKind string

const (
	KindRoot PrincipalKind = "root"
	KindNode PrincipalKind = "node"
	KindUser PrincipalKind = "user"
)

// Reserved usernames for the platform principals.
const (
	RootUsername = "root"
	NodeUsername = "node"
)

// Principal is an authenticated caller. Root and node carry synthetic user
// records with the zero UUID.
type Principal struct {
	Kind PrincipalKind
	User *types.User
}

// IsRoot reports whether the principal is the platform root.
func (p *Principal) IsRoot() bool { return p.Kind == KindRoot }

// IsNode reports whether the principal is a worker node.
func (p *Principal) IsNode() bool { return p.Kind == KindNode }

// HashSecret hashes a user secret for storage.
func HashSecret(secret string) (string, error) {
	raw, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", types.Wrap(types.ErrInvalid, "hash secret", err)
	}
	return string(raw), nil
}

// VerifySecret compares a stored hash against a presented secret.
func VerifySecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Authenticator resolves HTTP basic credentials into principals.
type Authenticator struct {
	store      storage.Store
	rootSecret string
	nodeSecret string
}

// NewAuthenticator creates an authenticator over the given store
func NewAuthenticator(store storage.Store, rootSecret, nodeSecret string) *Authenticator {
	return &Authenticator{store: store, rootSecret: rootSecret, nodeSecret: nodeSecret}
}

// Authenticate resolves credentials. Any failure is reported as missing
// credentials so callers cannot probe which part was wrong.
func (a *Authenticator) Authenticate(username, password string) (*Principal, error) {
	if username == "" || password == "" {
		return nil, types.E(types.ErrAuthMissing, "authenticate to access this resource")
	}

	switch username {
	case RootUsername:
		if a.rootSecret != "" && password == a.rootSecret {
			return &Principal{Kind: KindRoot, User: syntheticUser("root")}, nil
		}
		return nil, types.E(types.ErrAuthMissing, "authentication failed")
	case NodeUsername:
		if a.nodeSecret != "" && password == a.nodeSecret {
			return &Principal{Kind: KindNode, User: syntheticUser("node")}, nil
		}
		return nil, types.E(types.ErrAuthMissing, "authentication failed")
	}

	user, err := a.store.GetUser(storage.Spec{"mail": types.NormalizeMail(username)})
	if err != nil {
		return nil, err
	}
	if user == nil || !VerifySecret(user.Secret, password) {
		return nil, types.E(types.ErrAuthMissing, "authentication failed")
	}
	return &Principal{Kind: KindUser, User: user}, nil
}

func syntheticUser(name string) *types.User {
	return &types.User{
		ID:            types.UUIDZero,
		FirstName:     name,
		LastName:      "platform",
		Mail:          name + "@oscied.local",
		AdminPlatform: true,
	}
}

// Rule is a disjunction of access predicates, evaluated left to right.
// The zero rule denies everyone.
type Rule struct {
	AllowRoot bool
	AllowNode bool
	AllowAny  bool
	// Role names a boolean user attribute, only admin_platform exists.
	Role string
	// ID passes the user whose identifier equals the value.
	ID string
	// Mail passes the user whose mail equals the value.
	Mail string
}

// Require checks a principal against a rule. The first satisfied predicate
// grants access; none satisfied denies.
func Require(p *Principal, rule Rule) error {
	if p == nil {
		return types.E(types.ErrAuthMissing, "authenticate to access this resource")
	}
	if rule.AllowRoot && p.Kind == KindRoot {
		return nil
	}
	if rule.AllowNode && p.Kind == KindNode {
		return nil
	}
	if rule.AllowAny && p.Kind == KindUser {
		return nil
	}
	if p.Kind == KindUser && p.User != nil {
		if rule.Role == "admin_platform" && p.User.AdminPlatform {
			return nil
		}
		if rule.ID != "" && p.User.ID == rule.ID {
			return nil
		}
		if rule.Mail != "" && p.User.Mail == rule.Mail {
			return nil
		}
	}
	return types.E(types.ErrAuthRefused, "you are not allowed to access this resource")
}
