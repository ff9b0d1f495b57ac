package models

// Contact is an emergency contact owned by a single user.
type Contact struct {
	ID           int64   `json:"id"`
	UserID       int64   `json:"userId"`
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	Email        *string `json:"email"`
	Relationship *string `json:"relationship"`
	IsPrimary    bool    `json:"isPrimary"`
}

type ContactInput struct {
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	Email        *string `json:"email"`
	Relationship *string `json:"relationship"`
	IsPrimary    bool    `json:"isPrimary"`
}

// ContactPatch carries a partial update; nil fields are left untouched.
type ContactPatch struct {
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	Relationship *string `json:"relationship"`
	IsPrimary    *bool   `json:"isPrimary"`
}

func (p ContactPatch) Apply(c *Contact) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Email != nil {
		c.Email = p.Email
	}
	if p.Relationship != nil {
		c.Relationship = p.Relationship
	}
	if p.IsPrimary != nil {
		c.IsPrimary = *p.IsPrimary
	}
}
