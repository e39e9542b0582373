package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers ledger, account and investment routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Post("/deposit", h.HandleDeposit)
		r.Post("/deposit/{id}/confirm", h.HandleConfirmDeposit) // Payment collaborator settles
		r.Post("/deposit/{id}/fail", h.HandleFailDeposit)
		r.Post("/withdraw", h.HandleWithdraw)
		r.Post("/invest", h.HandleInvest)
		r.Post("/rental-income", h.HandleRentalIncome)
		r.Post("/transfer", h.HandleTransfer)
		r.Post("/transactions/{id}/compensate", h.HandleCompensate)

		r.Get("/balance", h.HandleGetBalance)
		r.Get("/transactions", h.HandleListTransactions)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.HandleCreateAccount)
		r.Get("/{id}", h.HandleGetAccount)
		r.Post("/{id}/deactivate", h.HandleDeactivateAccount)
		r.Put("/{id}/wallet", h.HandleLinkWallet)
	})

	r.Route("/investments", func(r chi.Router) {
		r.Get("/", h.HandleListInvestments)
		r.Put("/{id}/valuation", h.HandleUpdateValuation) // Valuation feed
	})
}
