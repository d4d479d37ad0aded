package setting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-identity/internal/profile"
	profileentity "github.com/ovaphlow/pitchfork/service-identity/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/setting"
	"github.com/ovaphlow/pitchfork/service-identity/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/testutil"
	"github.com/ovaphlow/pitchfork/service-identity/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
)

func TestSettings(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	profiles := profile.NewService(db, nil, user.PlainHasher{}, nil, profile.ResetPolicy{}, testutil.Logger())
	p, err := profiles.Create(ctx, profileentity.NewProfile{
		Email: "ann@x.com", Password: "pw", Role: userentity.RolePrivate,
	}, acs.GrandAccess(), false)
	require.NoError(t, err)

	svc := setting.NewService(db, nil, testutil.Logger())
	own := acs.EditOwnObject{UID: p.UID}

	st, err := svc.Get(ctx, p.Username, own)
	require.NoError(t, err)
	assert.Equal(t, userentity.LanguageUA, st.Language)

	st, err = svc.UpdateByUsername(ctx, p.Username, entity.Settings{
		Language: userentity.LanguageEN, NotifyAboutNewPoll: true,
	}, own)
	require.NoError(t, err)
	assert.True(t, st.NotifyAboutNewPoll)

	st, err = svc.UpdateLanguage(ctx, p.Username, "ru-RU", own)
	require.NoError(t, err)
	assert.Equal(t, userentity.LanguageRU, st.Language)
	assert.True(t, st.NotifyAboutNewPoll)

	_, err = svc.UpdateByUsername(ctx, p.Username, entity.Settings{Language: "xx"}, own)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Get(ctx, p.Username, acs.EditOwnObject{UID: "someone-else"})
	assert.True(t, apperr.HasCode(err, apperr.CodeEntityNotFound))

	_, err = svc.UpdateLanguage(ctx, "ghost", "en", acs.GrandAccess())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
