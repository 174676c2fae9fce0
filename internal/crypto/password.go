package crypto

import "golang.org/x/crypto/bcrypt"

// PasswordAlg is stored next to every hash so older schemes can be told apart.
const PasswordAlg = "bcrypt"

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
