// Package retry retries connection acquisition with exponential backoff.
//
// Only connection establishment goes through an Executor. Statements are
// never retried: a mutation that failed after reaching the server may have
// had effects, and the caller gets the driver's error text instead.
//
// # Example Usage
//
//	executor := retry.NewExecutor(retry.NewConnectionClassifier(), retry.DefaultConnectBackoff())
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    session, err = open(ctx)
//	    return err
//	})
//
// # Error Classification
//
// ConnectionClassifier treats PostgreSQL class 08/53/57 errors, MySQL
// "too many connections" style errors, refused/reset/unreachable sockets and
// driver.ErrBadConn as transient. Authentication failures and unknown
// databases are fatal.
package retry
