package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-otp/middleware/jwtware"
)

// HTTPControllerRoutes holds the paths mounted under the auth group
type HTTPControllerRoutes struct {
	Register       string
	VerifyOTP      string
	Login          string
	ForgotPassword string
	ResetPassword  string
	Me             string
}

// HTTPController exposes the Service as a JSON API
type HTTPController struct {
	Service    *Service
	Logger     Logger
	Routes     *HTTPControllerRoutes
	ContextKey string
}

type HTTPControllerOption func(*HTTPController) *HTTPController

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		if logger != nil {
			h.Logger = logger
		}
		return h
	}
}

// WithControllerRoutes overrides route paths
func WithControllerRoutes(routes *HTTPControllerRoutes) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		if routes != nil {
			h.Routes = routes
		}
		return h
	}
}

func NewHTTPController(service *Service, opts ...HTTPControllerOption) *HTTPController {
	h := &HTTPController{
		Service:    service,
		Logger:     defLogger{},
		ContextKey: DefaultContextKey,
		Routes: &HTTPControllerRoutes{
			Register:       "/register",
			VerifyOTP:      "/verify-otp",
			Login:          "/login",
			ForgotPassword: "/forgot-password",
			ResetPassword:  "/reset-password",
			Me:             "/me",
		},
	}

	for _, opt := range opts {
		h = opt(h)
	}

	if h.Service == nil {
		panic("Missing Service in auth controller...")
	}

	return h
}

// RegisterAuthRoutes mounts the auth API on app
func RegisterAuthRoutes(app fiber.Router, service *Service, opts ...HTTPControllerOption) *HTTPController {
	controller := NewHTTPController(service, opts...)
	controller.Mount(app)
	return controller
}

// Mount attaches the handlers to r
func (h *HTTPController) Mount(r fiber.Router) {
	r.Post(h.Routes.Register, h.RegisterPost).Name("auth.register")
	r.Post(h.Routes.VerifyOTP, h.VerifyOTPPost).Name("auth.verify-otp")
	r.Post(h.Routes.Login, h.LoginPost).Name("auth.login")
	r.Post(h.Routes.ForgotPassword, h.ForgotPasswordPost).Name("auth.forgot-password")
	r.Post(h.Routes.ResetPassword, h.ResetPasswordPost).Name("auth.reset-password")
	r.Get(h.Routes.Me, h.BearerMiddleware(), h.MeGet).Name("auth.me")
}

// BearerMiddleware verifies the Authorization header with the service token issuer
func (h *HTTPController) BearerMiddleware(listeners ...ValidationListener) fiber.Handler {
	cfg := jwtware.Config{
		ContextKey:     h.ContextKey,
		TokenValidator: TokenValidatorAdapter(h.Service.Tokens()),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return h.unauthorized(c, err)
		},
		ContextEnricher: ContextEnricherAdapter,
	}
	RegisterValidationListeners(&cfg, listeners...)
	return jwtware.New(cfg)
}

func (h *HTTPController) RegisterPost(c *fiber.Ctx) error {
	payload := new(RegisterUserMessage)
	if ok, err := h.bind(c, payload); !ok {
		return err
	}

	if err := h.Service.Register(c.UserContext(), *payload); err != nil {
		return h.failure(c, fiber.StatusOK, err)
	}

	return c.JSON(fiber.Map{"message": MessageCodeSent})
}

func (h *HTTPController) VerifyOTPPost(c *fiber.Ctx) error {
	payload := new(VerifyOTPMessage)
	if ok, err := h.bind(c, payload); !ok {
		return err
	}

	if err := h.Service.VerifyOTP(c.UserContext(), payload.Email, payload.OTP); err != nil {
		return h.failure(c, fiber.StatusOK, err)
	}

	return c.JSON(fiber.Map{"message": MessageVerified})
}

func (h *HTTPController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginMessage)
	if ok, err := h.bind(c, payload); !ok {
		return err
	}

	res, err := h.Service.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return h.failure(c, fiber.StatusUnauthorized, err)
	}

	return c.JSON(res)
}

func (h *HTTPController) ForgotPasswordPost(c *fiber.Ctx) error {
	payload := new(InitializePasswordResetMessage)
	if ok, err := h.bind(c, payload); !ok {
		return err
	}

	if err := h.Service.RequestPasswordReset(c.UserContext(), payload.Email); err != nil {
		return h.failure(c, fiber.StatusOK, err)
	}

	return c.JSON(fiber.Map{"message": MessageResetLinkSent})
}

func (h *HTTPController) ResetPasswordPost(c *fiber.Ctx) error {
	payload := new(FinalizePasswordResetMessage)
	if ok, err := h.bind(c, payload); !ok {
		return err
	}

	if err := h.Service.ResetPassword(c.UserContext(), payload.Token, payload.NewPassword); err != nil {
		return h.failure(c, fiber.StatusOK, err)
	}

	return c.JSON(fiber.Map{"message": MessagePasswordReset})
}

func (h *HTTPController) MeGet(c *fiber.Ctx) error {
	claims, ok := GetFiberClaims(c, h.ContextKey)
	if !ok {
		return h.unauthorized(c, ErrBearerMalformed)
	}

	user, err := h.Service.UserFromClaims(c.UserContext(), claims)
	if err != nil {
		if IsDomainError(err) {
			return h.unauthorized(c, err)
		}
		return h.failure(c, fiber.StatusUnauthorized, err)
	}

	return c.JSON(user)
}

type validatable interface {
	Validate() error
}

// bind parses the body and runs the payload rules. When it reports false
// the 400 response has been written and err is the write result.
func (h *HTTPController) bind(c *fiber.Ctx, payload validatable) (bool, error) {
	if err := c.BodyParser(payload); err != nil {
		h.Logger.Warn("failed to parse request body", "path", c.Path(), "error", err)
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
			"code":  TextCodeValidation,
		})
	}

	if err := payload.Validate(); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"code":   TextCodeValidation,
			"fields": FormatValidationErrorToMap(err),
		})
	}

	return true, nil
}

// failure writes a domain error with status or a generic 500
func (h *HTTPController) failure(c *fiber.Ctx, status int, err error) error {
	if domainErr := DomainError(err); domainErr != nil {
		return c.Status(status).JSON(fiber.Map{
			"error": domainErr.Message,
			"code":  domainErr.TextCode,
		})
	}

	h.Logger.Error("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

func (h *HTTPController) unauthorized(c *fiber.Ctx, err error) error {
	body := fiber.Map{"error": "unauthorized"}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		body["error"] = richErr.Message
		body["code"] = richErr.TextCode
	}

	return c.Status(fiber.StatusUnauthorized).JSON(body)
}

// FormatValidationErrorToMap flattens ozzo validation errors by field name
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["form"] = err.Error()
	return out
}
