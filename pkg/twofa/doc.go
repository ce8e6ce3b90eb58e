// Package twofa implements second-factor enrollment and verification.
//
// Three methods are supported: email and telegram, where a 6-digit code is
// delivered out of band and stored until used or expired, and totp, where the
// code is computed from a shared secret. Every enrollment also carries 8
// single-use backup codes.
//
// # Verification order
//
// Service.Verify tries, in order:
//
//  1. a backup code of the enabled enrollment for the method
//  2. a delivered code for the method that is unexpired and unused
//  3. the TOTP secret, when the method is totp
//
// The first match wins and consumes whatever it matched.
//
// # Usage
//
//	repo, _ := twofa.NewTwoFARepository("postgres", twofa.RepositoryConfig{DB: pool})
//	svc := twofa.NewService(repo,
//		twofa.WithSender(notificationManager),
//		twofa.WithAttemptLimiter(limiter),
//	)
//
//	secret, _ := svc.GenerateTotpSecret(ctx, user)
//	enrollment, _ := svc.Enable(ctx, user, twofa.MethodTOTP, twofa.EnableParams{Secret: secret.Secret})
//	ok, _ := svc.Verify(ctx, user.ID, twofa.MethodTOTP, submitted)
package twofa
