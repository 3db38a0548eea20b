package email

const subjectProposal = "Your YardGuard artificial turf proposal"
