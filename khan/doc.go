// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package khan is a small client for the program registry's public API.

Two operations are exposed. ProgramExists checks whether a program id is
known to the registry, used to validate linked and entered programs:

	client := khan.NewClient(cfg.ProgramAPI, 10*time.Second)
	ok, err := client.ProgramExists(ctx, programID)

TopSpinOffs walks the cursor-paginated top-forks listing and returns the
program ids of every spin-off of a program, used for bulk entry import:

	ids, err := client.TopSpinOffs(ctx, programID)

Both operations honor context cancellation and the client's request
timeout. A non-2xx status from the existence check means "not found";
everything else surfaces as an error.
*/
package khan
