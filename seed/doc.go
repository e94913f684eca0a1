// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package seed loads an election definition from YAML and writes it to the
database.

	positions:
	  - id: president
	    name: President
	    nomination_opens: 2026-03-01T08:00:00Z
	    nomination_closes: 2026-03-07T17:00:00Z
	    voting_opens: 2026-03-10T08:00:00Z
	    voting_closes: 2026-03-10T17:00:00Z
	    candidates:
	      - user_id: u-1001
	        name: Alice Mwangi
	        status: approved
	voters:
	  - reg_no: stu/001/2023
	    name: Brian Otieno
	    email: brian@example.edu

Positions are keyed by id, candidates by (position, user_id) and voters by
their normalized registration number, so a file can be applied repeatedly
as the roll changes. Seats defaults to 1, candidate status to submitted and
voter status to eligible.
*/
package seed
