package identity

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharednotes/pkg/crypto"
)

type fakeCognito struct {
	signUp   *cip.SignUpInput
	confirm  *cip.ConfirmSignUpInput
	auth     []*cip.InitiateAuthInput
	deleted  *cip.DeleteUserInput
	revoked  *cip.RevokeTokenInput
	authErr  error
	authResp *cip.InitiateAuthOutput
}

func (f *fakeCognito) SignUp(_ context.Context, in *cip.SignUpInput, _ ...func(*cip.Options)) (*cip.SignUpOutput, error) {
	f.signUp = in
	return &cip.SignUpOutput{}, nil
}

func (f *fakeCognito) ConfirmSignUp(_ context.Context, in *cip.ConfirmSignUpInput, _ ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error) {
	f.confirm = in
	return &cip.ConfirmSignUpOutput{}, nil
}

func (f *fakeCognito) InitiateAuth(_ context.Context, in *cip.InitiateAuthInput, _ ...func(*cip.Options)) (*cip.InitiateAuthOutput, error) {
	f.auth = append(f.auth, in)
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.authResp, nil
}

func (f *fakeCognito) DeleteUser(_ context.Context, in *cip.DeleteUserInput, _ ...func(*cip.Options)) (*cip.DeleteUserOutput, error) {
	f.deleted = in
	return &cip.DeleteUserOutput{}, nil
}

func (f *fakeCognito) RevokeToken(_ context.Context, in *cip.RevokeTokenInput, _ ...func(*cip.Options)) (*cip.RevokeTokenOutput, error) {
	f.revoked = in
	return &cip.RevokeTokenOutput{}, nil
}

func TestCognitoSignOutRevokesRefreshToken(t *testing.T) {
	api := &fakeCognito{}
	c := newCognito(api, "client", "secret", zerolog.Nop())

	require.NoError(t, c.SignOut(context.Background(), &Tokens{Username: "alice"}))
	assert.Nil(t, api.revoked)

	require.NoError(t, c.SignOut(context.Background(), &Tokens{Username: "alice", RefreshToken: "refresh-1"}))
	require.NotNil(t, api.revoked)
	assert.Equal(t, "refresh-1", aws.ToString(api.revoked.Token))
	assert.Equal(t, "client", aws.ToString(api.revoked.ClientId))
	assert.Equal(t, "secret", aws.ToString(api.revoked.ClientSecret))
}

func TestCognitoSignUpSendsSecretHash(t *testing.T) {
	api := &fakeCognito{}
	c := newCognito(api, "client", "secret", zerolog.Nop())

	require.NoError(t, c.SignUp(context.Background(), "alice@example.com", "alice", "Secr3t!"))
	require.NotNil(t, api.signUp)
	assert.Equal(t, "alice", aws.ToString(api.signUp.Username))
	assert.Equal(t, crypto.SecretHash("alice", "client", "secret"), aws.ToString(api.signUp.SecretHash))
	require.Len(t, api.signUp.UserAttributes, 1)
	assert.Equal(t, "alice@example.com", aws.ToString(api.signUp.UserAttributes[0].Value))

	require.NoError(t, c.ConfirmSignUp(context.Background(), "alice", "123456"))
	assert.Equal(t, "123456", aws.ToString(api.confirm.ConfirmationCode))
}

func TestCognitoWithoutSecret(t *testing.T) {
	api := &fakeCognito{authResp: &cip.InitiateAuthOutput{
		AuthenticationResult: &types.AuthenticationResultType{AccessToken: aws.String("a"), RefreshToken: aws.String("r")},
	}}
	c := newCognito(api, "client", "", zerolog.Nop())

	_, err := c.SignIn(context.Background(), "alice", "pw")
	require.NoError(t, err)
	_, hasHash := api.auth[0].AuthParameters["SECRET_HASH"]
	assert.False(t, hasHash)
}

func TestCognitoSignInAndRefresh(t *testing.T) {
	api := &fakeCognito{authResp: &cip.InitiateAuthOutput{
		AuthenticationResult: &types.AuthenticationResultType{
			AccessToken:  aws.String("access-1"),
			IdToken:      aws.String("id-1"),
			RefreshToken: aws.String("refresh-1"),
		},
	}}
	c := newCognito(api, "client", "secret", zerolog.Nop())

	tokens, err := c.SignIn(context.Background(), "alice", "Secr3t!")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, types.AuthFlowTypeUserPasswordAuth, api.auth[0].AuthFlow)
	assert.Equal(t, "Secr3t!", api.auth[0].AuthParameters["PASSWORD"])

	api.authResp = &cip.InitiateAuthOutput{
		AuthenticationResult: &types.AuthenticationResultType{AccessToken: aws.String("access-2")},
	}
	refreshed, err := c.Refresh(context.Background(), tokens)
	require.NoError(t, err)
	assert.Equal(t, "access-2", refreshed.AccessToken)
	assert.Equal(t, "refresh-1", refreshed.RefreshToken)
	assert.Equal(t, types.AuthFlowTypeRefreshTokenAuth, api.auth[1].AuthFlow)
	assert.Equal(t, "refresh-1", api.auth[1].AuthParameters["REFRESH_TOKEN"])

	require.NoError(t, c.DeleteUser(context.Background(), "access-2"))
	assert.Equal(t, "access-2", aws.ToString(api.deleted.AccessToken))
}

func TestCognitoErrorsCarryProviderMessage(t *testing.T) {
	api := &fakeCognito{authErr: &smithy.GenericAPIError{Code: "NotAuthorizedException", Message: "Incorrect username or password."}}
	c := newCognito(api, "client", "", zerolog.Nop())

	_, err := c.SignIn(context.Background(), "alice", "bad")
	require.Error(t, err)
	idErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, "NotAuthorizedException", idErr.Code)
	assert.Equal(t, "Incorrect username or password.", idErr.Message)
}

func TestCognitoChallengeIsAnError(t *testing.T) {
	api := &fakeCognito{authResp: &cip.InitiateAuthOutput{ChallengeName: types.ChallengeNameTypeNewPasswordRequired}}
	c := newCognito(api, "client", "", zerolog.Nop())

	_, err := c.SignIn(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.Equal(t, "NEW_PASSWORD_REQUIRED", err.(*Error).Code)

	_, err = c.Refresh(context.Background(), &Tokens{Username: "alice"})
	assert.Error(t, err)
}

func TestMemoryProviderLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.SignUp(ctx, "alice@example.com", "alice", "Secr3t!"))
	assert.Error(t, m.SignUp(ctx, "alice@example.com", "alice", "Secr3t!"))

	_, err := m.SignIn(ctx, "alice", "Secr3t!")
	assert.Equal(t, "UserNotConfirmedException", err.(*Error).Code)

	code, ok := m.Code("alice")
	require.True(t, ok)
	assert.Error(t, m.ConfirmSignUp(ctx, "alice", "wrong"))
	require.NoError(t, m.ConfirmSignUp(ctx, "alice", code))

	tokens, err := m.SignIn(ctx, "alice", "Secr3t!")
	require.NoError(t, err)

	refreshed, err := m.Refresh(ctx, tokens)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.AccessToken, refreshed.AccessToken)

	assert.True(t, m.SignedIn("alice"))
	require.NoError(t, m.SignOut(ctx, refreshed))
	assert.False(t, m.SignedIn("alice"))
	_, err = m.Refresh(ctx, refreshed)
	assert.Error(t, err)

	tokens, err = m.SignIn(ctx, "alice", "Secr3t!")
	require.NoError(t, err)
	require.NoError(t, m.DeleteUser(ctx, tokens.AccessToken))
	assert.False(t, m.Exists("alice"))
	assert.Error(t, m.DeleteUser(ctx, tokens.AccessToken))
}

func TestMemoryFailNext(t *testing.T) {
	m := NewMemory()
	m.AddConfirmed("bob@example.com", "bob", "pw")
	m.FailNext("SignIn", &Error{Op: "SignIn", Message: "throttled"})

	_, err := m.SignIn(context.Background(), "bob", "pw")
	assert.EqualError(t, err, "identity SignIn: throttled")

	_, err = m.SignIn(context.Background(), "bob", "pw")
	assert.NoError(t, err)
}
