package identity

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"sharednotes/pkg/crypto"
)

// cognitoAPI is the part of the Cognito client the adapter uses
type cognitoAPI interface {
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	DeleteUser(ctx context.Context, params *cip.DeleteUserInput, optFns ...func(*cip.Options)) (*cip.DeleteUserOutput, error)
	RevokeToken(ctx context.Context, params *cip.RevokeTokenInput, optFns ...func(*cip.Options)) (*cip.RevokeTokenOutput, error)
}

// CognitoConfig holds the app client settings of a user pool
type CognitoConfig struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string
}

// Cognito is a Provider backed by an AWS Cognito user pool
type Cognito struct {
	api          cognitoAPI
	clientID     string
	clientSecret string
	logger       zerolog.Logger
}

// NewCognito loads the default AWS configuration for the pool's region and
// builds a provider
func NewCognito(ctx context.Context, cfg CognitoConfig, logger zerolog.Logger) (*Cognito, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("cognito: client id is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("cognito: load aws config: %w", err)
	}

	logger.Debug().Str("region", cfg.Region).Str("user_pool_id", cfg.UserPoolID).Msg("cognito provider configured")
	return newCognito(cip.NewFromConfig(awsCfg), cfg.ClientID, cfg.ClientSecret, logger), nil
}

func newCognito(api cognitoAPI, clientID, clientSecret string, logger zerolog.Logger) *Cognito {
	return &Cognito{
		api:          api,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger.With().Str("component", "cognito").Logger(),
	}
}

func (c *Cognito) secretHash(username string) *string {
	if c.clientSecret == "" {
		return nil
	}
	return aws.String(crypto.SecretHash(username, c.clientID, c.clientSecret))
}

func (c *Cognito) authParams(params map[string]string, username string) map[string]string {
	if hash := c.secretHash(username); hash != nil {
		params["SECRET_HASH"] = *hash
	}
	return params
}

// SignUp implements Provider
func (c *Cognito) SignUp(ctx context.Context, email, username, password string) error {
	_, err := c.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:   aws.String(c.clientID),
		Username:   aws.String(username),
		Password:   aws.String(password),
		SecretHash: c.secretHash(username),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
		},
	})
	return c.wrap("SignUp", err)
}

// ConfirmSignUp implements Provider
func (c *Cognito) ConfirmSignUp(ctx context.Context, username, code string) error {
	_, err := c.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		SecretHash:       c.secretHash(username),
	})
	return c.wrap("ConfirmSignUp", err)
}

// SignIn implements Provider
func (c *Cognito) SignIn(ctx context.Context, username, password string) (*Tokens, error) {
	out, err := c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(c.clientID),
		AuthParameters: c.authParams(map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		}, username),
	})
	if err != nil {
		return nil, c.wrap("SignIn", err)
	}
	return c.tokens("SignIn", username, out, "")
}

// Refresh implements Provider
func (c *Cognito) Refresh(ctx context.Context, tokens *Tokens) (*Tokens, error) {
	if tokens == nil || tokens.RefreshToken == "" {
		return nil, &Error{Op: "Refresh", Message: "No refresh token available"}
	}

	out, err := c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		ClientId: aws.String(c.clientID),
		AuthParameters: c.authParams(map[string]string{
			"REFRESH_TOKEN": tokens.RefreshToken,
		}, tokens.Username),
	})
	if err != nil {
		return nil, c.wrap("Refresh", err)
	}
	// Cognito does not rotate the refresh token on this flow.
	return c.tokens("Refresh", tokens.Username, out, tokens.RefreshToken)
}

func (c *Cognito) tokens(op, username string, out *cip.InitiateAuthOutput, refresh string) (*Tokens, error) {
	if out.AuthenticationResult == nil {
		return nil, &Error{
			Op:      op,
			Code:    string(out.ChallengeName),
			Message: "authentication challenge is not supported",
		}
	}

	result := out.AuthenticationResult
	if r := aws.ToString(result.RefreshToken); r != "" {
		refresh = r
	}
	return &Tokens{
		Username:     username,
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: refresh,
	}, nil
}

// DeleteUser implements Provider
func (c *Cognito) DeleteUser(ctx context.Context, accessToken string) error {
	_, err := c.api.DeleteUser(ctx, &cip.DeleteUserInput{AccessToken: aws.String(accessToken)})
	return c.wrap("DeleteUser", err)
}

// SignOut implements Provider. Tokens without a refresh token are a no-op.
func (c *Cognito) SignOut(ctx context.Context, tokens *Tokens) error {
	if tokens == nil || tokens.RefreshToken == "" {
		return nil
	}
	in := &cip.RevokeTokenInput{
		Token:    aws.String(tokens.RefreshToken),
		ClientId: aws.String(c.clientID),
	}
	if c.clientSecret != "" {
		in.ClientSecret = aws.String(c.clientSecret)
	}
	_, err := c.api.RevokeToken(ctx, in)
	return c.wrap("SignOut", err)
}

func (c *Cognito) wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	idErr := &Error{Op: op, Message: err.Error(), Err: err}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		idErr.Code = apiErr.ErrorCode()
		idErr.Message = apiErr.ErrorMessage()
	}
	c.logger.Debug().Err(err).Str("op", op).Str("code", idErr.Code).Msg("cognito call failed")
	return idErr
}
