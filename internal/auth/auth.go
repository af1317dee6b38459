// Package auth is the thin glue to the identity collaborator. The
// surrounding environment authenticates callers before an action reaches
// the engine; this package answers "does the authenticated caller hold
// this identity's authority" and "does this account exist".
package auth

import "github.com/yottachain/mena/internal/errs"

// Authorizer answers authority and existence questions for identities.
type Authorizer interface {
	// RequireAuth fails unless caller holds identity's authority.
	RequireAuth(caller, identity string) error

	// IsAccount reports whether the identity is a known account.
	IsAccount(identity string) bool
}

// Directory is the default Authorizer: a registry of known accounts
// where authority means being the identity itself. Delegated authority
// lives upstream; by the time an action arrives its caller field is the
// identity that actually signed.
type Directory struct {
	accounts map[string]struct{}
}

// NewDirectory returns a directory seeded with the given accounts.
func NewDirectory(seed ...string) *Directory {
	d := &Directory{accounts: make(map[string]struct{}, len(seed))}
	for _, name := range seed {
		d.accounts[name] = struct{}{}
	}
	return d
}

// Register adds an account to the directory.
func (d *Directory) Register(name string) error {
	if name == "" {
		return errs.Invalidf("account name must not be empty")
	}
	if _, ok := d.accounts[name]; ok {
		return errs.AlreadyExistsf("account %q", name)
	}
	d.accounts[name] = struct{}{}
	return nil
}

// IsAccount reports whether the identity is registered.
func (d *Directory) IsAccount(identity string) bool {
	_, ok := d.accounts[identity]
	return ok
}

// RequireAuth fails unless the caller is the identity and the identity
// exists.
func (d *Directory) RequireAuth(caller, identity string) error {
	if !d.IsAccount(identity) {
		return errs.NotFoundf("account %q", identity)
	}
	if caller != identity {
		return errs.Unauthorizedf("caller %q lacks authority of %q", caller, identity)
	}
	return nil
}

// Names returns the registered accounts for persistence.
func (d *Directory) Names() []string {
	out := make([]string, 0, len(d.accounts))
	for name := range d.accounts {
		out = append(out, name)
	}
	return out
}

// Restore replaces the directory contents.
func (d *Directory) Restore(names []string) {
	d.accounts = make(map[string]struct{}, len(names))
	for _, name := range names {
		d.accounts[name] = struct{}{}
	}
}
