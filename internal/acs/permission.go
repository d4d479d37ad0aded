package acs

import (
	"net/url"

	"github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
)

// Permission names a guarded capability.
type Permission string

const (
	PermModeration          Permission = "moderation"
	PermUserProfiles        Permission = "user_profiles"
	PermOwnProfile          Permission = "own_profile"
	PermSaveImage           Permission = "save_image"
	PermUnlinkSocialNetwork Permission = "unlink_social_network"
)

// Request is the part of an authenticated request a resolver may inspect.
type Request struct {
	UserUID string
	Role    entity.Role
	Query   url.Values
}

// Resolver builds the scope granted for one request.
type Resolver func(Request) Scope

func grand(Request) Scope { return GrandAccess() }

func editOwn(r Request) Scope { return EditOwnObject{UID: r.UserUID} }

func editOwnImage(r Request) Scope {
	if r.Query.Get("email") != "" {
		return AccessDenied()
	}
	return EditOwnObject{UID: r.UserUID}
}

// Lookup returns the resolver granted to role for perm. ok is false when the
// role holds no such permission.
func Lookup(role entity.Role, perm Permission) (Resolver, bool) {
	switch role {
	case entity.RoleAdministrator:
		switch perm {
		case PermModeration, PermUserProfiles, PermSaveImage, PermUnlinkSocialNetwork:
			return grand, true
		case PermOwnProfile:
			return editOwn, true
		}
	case entity.RoleModerator:
		switch perm {
		case PermModeration, PermOwnProfile:
			return editOwn, true
		case PermSaveImage:
			return editOwnImage, true
		}
	case entity.RoleJournalist, entity.RolePrivate, entity.RoleLegal:
		switch perm {
		case PermOwnProfile:
			return editOwn, true
		case PermSaveImage:
			return editOwnImage, true
		}
	case entity.RoleAnonymous, entity.RoleDeleted:
	}
	return nil, false
}

// Resolve looks up and applies the resolver for the request.
func Resolve(perm Permission, r Request) (Scope, bool) {
	resolve, ok := Lookup(r.Role, perm)
	if !ok {
		return nil, false
	}
	return resolve(r), true
}
