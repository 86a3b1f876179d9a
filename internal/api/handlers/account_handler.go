package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	config "github.com/kee711/threads-saas-sub001/configs"
	"github.com/kee711/threads-saas-sub001/internal/service"
)

type AccountHandler struct {
	s   service.ThreadsAccountService
	cfg config.Config
}

func NewAccountHandler(service service.ThreadsAccountService, cfg config.Config) *AccountHandler {
	return &AccountHandler{s: service, cfg: cfg}
}

func (h *AccountHandler) Connect(c *fiber.Ctx) error {
	userID := GetUserID(c)
	state := strconv.FormatInt(userID, 10)
	return c.Redirect(h.s.GetAuthURL(c.Context(), state))
}

func (h *AccountHandler) ConnectCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing authorization code",
		})
	}

	userID, err := strconv.ParseInt(c.Query("state"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid state parameter",
		})
	}

	if err := h.s.Callback(c.Context(), code, userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to connect Threads account",
		})
	}

	return c.Redirect(h.cfg.FrontendURL + "/accounts")
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accounts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *AccountHandler) RemoveAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountID := c.QueryInt("id", 0)

	if err := h.s.Delete(c.Context(), userID, int64(accountID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
