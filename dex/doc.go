/*
Package dex drives a cross-chain swap saga against a dex chain reached through an
interchain account (ICA).

A saga moves the coins of a Task to the dex account, sells them for the task's out
denom and brings the proceeds back to the owner:

	[OpenIca] -> TransferOut -> SwapExactIn -> TransferInInit -> TransferInFinish -> Result

Every step that sends a message waits inside a ResponseDelivery envelope keyed by the
transaction id of the submission. The host delivers acknowledgements, errors, timeouts,
local replies and time alarms as Events; Dispatch routes them to the current State which
returns a Transition holding the next state (or the final Result) and the messages to
emit. The state is persisted only after a successful transition, a returned error leaves
the stored state untouched.

A broken ICA channel moves the saga into PreRecoverIca and RecoverIca. Once the account
is reopened the interrupted stage is resubmitted with the new account record.

Enclosing workflows embed a saga as one of their steps with ForwardToInner.
*/
package dex
