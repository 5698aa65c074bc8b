package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kevinaaaquil/library/middleware"
	"github.com/kevinaaaquil/library/models"
)

// Server groups the handlers behind the HTTP API.
type Server struct {
	JWTSecret   string
	CORSOrigins []string
	MaxUploadMB int64

	Auth         *AuthHandler
	Accounts     *AccountsHandler
	Books        *BooksHandler
	Lending      *LendingHandler
	History      *HistoryHandler
	Receipts     *ReceiptsHandler
	Admin        *AdminHandler
	MailSettings *MailSettingsHandler
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(s.CORSOrigins))
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"welcome to the library."}`))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	staff := middleware.RequireStaff()
	librarian := middleware.RequireRole(models.RoleLibrarian)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.Auth.Login)
		r.Post("/auth/register", s.Auth.Register)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(s.JWTSecret))

			r.Get("/me", s.Accounts.Me)
			r.Put("/me/password", s.Accounts.ChangePassword)
			r.Delete("/me", s.Accounts.DeleteMe)

			r.Get("/books", s.Books.List)
			r.Get("/books/{id}", s.Books.Get)
			r.Get("/books/{id}/cover", s.Books.Cover)
			r.With(staff).Post("/books", s.Books.Create)
			r.With(staff).Patch("/books/{id}", s.Books.Update)
			r.With(staff).Post("/books/{id}/cover", s.Books.UploadCover(s.MaxUploadMB*1024*1024))
			r.With(librarian).Delete("/books/{id}", s.Books.Delete)

			r.Group(func(r chi.Router) {
				r.Use(staff)
				r.Post("/loans/issue", s.Lending.Issue)
				r.Post("/loans/return", s.Lending.Return)

				r.Post("/history/staff", s.History.Staff)
				r.Post("/history/borrower", s.History.Borrower)
				r.Get("/history/staff/{username}/export", s.History.Export)

				r.Post("/receipts/pdf", s.Receipts.PDF)
				r.Post("/receipts/email", s.Receipts.Email)
			})

			r.Group(func(r chi.Router) {
				r.Use(librarian)
				r.Post("/loans/return-all", s.Lending.ReturnAll)

				r.Get("/admin/dashboard", s.Admin.Dashboard)
				r.Post("/admin/maintenance", s.Admin.ToggleMaintenance)
				r.Post("/admin/reset-history", s.Admin.ResetHistory)

				r.Post("/admin/staff", s.Accounts.CreateStaff)
				r.Get("/admin/accounts", s.Accounts.List)
				r.Delete("/admin/accounts/{id}", s.Accounts.DeleteAccount)
				r.Put("/admin/accounts/{id}/password", s.Accounts.ResetPassword)

				r.Get("/admin/mail-settings", s.MailSettings.Get)
				r.Put("/admin/mail-settings", s.MailSettings.Save)
			})
		})
	})
	return r
}
