package handler

import (
	"time"

	"miriesgo/internal/company/models"
)

type CompanyResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	NIT       string    `json:"nit"`
	Code      string    `json:"code"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CompaniesListResponse struct {
	Companies []*CompanyResponse `json:"companies"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	Pages     int                `json:"pages"`
}

func toCompanyResponse(c *models.Company) *CompanyResponse {
	return &CompanyResponse{
		ID:        int64(c.ID),
		Name:      c.Name,
		NIT:       c.NIT,
		Code:      c.TransUnionCode,
		Address:   c.Address,
		Phone:     c.Phone,
		Email:     c.Email,
		Status:    c.Status.String(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toListResponse(p *models.Page) *CompaniesListResponse {
	out := &CompaniesListResponse{
		Companies: make([]*CompanyResponse, 0, len(p.Companies)),
		Total:     p.Total,
		Page:      p.Page,
		Pages:     p.Pages,
	}
	for _, c := range p.Companies {
		out.Companies = append(out.Companies, toCompanyResponse(c))
	}
	return out
}

type MemberResponse struct {
	ID        int64      `json:"id"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `json:"created_at"`
}

type CompanyUsersResponse struct {
	CompanyID   int64             `json:"company_id"`
	CompanyName string            `json:"company_name"`
	TotalUsers  int               `json:"total_users"`
	Users       []*MemberResponse `json:"users"`
}

func toUsersResponse(r *models.Roster) *CompanyUsersResponse {
	out := &CompanyUsersResponse{
		CompanyID:   int64(r.Company.ID),
		CompanyName: r.Company.Name,
		TotalUsers:  len(r.Members),
		Users:       make([]*MemberResponse, 0, len(r.Members)),
	}
	for _, m := range r.Members {
		out.Users = append(out.Users, &MemberResponse{
			ID:        int64(m.ID),
			FullName:  m.FullName,
			Email:     m.Email,
			Role:      m.Role.String(),
			LastLogin: m.LastLogin,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}
