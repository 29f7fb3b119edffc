package token

// Result — итог проверки токена: либо Claims, либо Invalid с причиной.
type Result struct {
	claims *Claims
	reason error
}

// Valid строит успешный результат.
func Valid(c *Claims) Result {
	return Result{claims: c}
}

// Invalid строит отрицательный результат; nil-причина заменяется на ErrInvalid.
func Invalid(reason error) Result {
	if reason == nil {
		reason = ErrInvalid
	}

	return Result{reason: reason}
}

// Claims возвращает claim'ы и признак валидности.
func (r Result) Claims() (*Claims, bool) {
	return r.claims, r.claims != nil
}

// OK сообщает, что токен валиден.
func (r Result) OK() bool {
	return r.claims != nil
}

// Reason возвращает причину невалидности (nil для валидного токена).
func (r Result) Reason() error {
	if r.claims != nil {
		return nil
	}

	if r.reason == nil {
		return ErrInvalid
	}

	return r.reason
}
