package users

import (
	"regexp"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateName checks that a name is not empty
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	return nil
}

// ValidateEmail checks that an email has the form local@domain.tld
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateAge checks that an age is a positive integer
func ValidateAge(age int) error {
	if age <= 0 {
		return ErrInvalidAge
	}
	return nil
}

// ValidateUserID checks that a user id is not empty
func ValidateUserID(userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	return nil
}

// ValidateUpdates validates every field that is set in the updates.
// An update without any field is valid and changes nothing.
func ValidateUpdates(updates Updates) error {
	if updates.Name != nil {
		if err := ValidateName(*updates.Name); err != nil {
			return err
		}
	}
	if updates.Email != nil {
		if err := ValidateEmail(*updates.Email); err != nil {
			return err
		}
	}
	if updates.Age != nil {
		if err := ValidateAge(*updates.Age); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns a copy of the user with the updates applied
func (u Updates) Apply(user User) User {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.Age != nil {
		user.Age = *u.Age
	}
	return user
}
